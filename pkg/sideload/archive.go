package sideload

import (
	"bytes"

	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

const (
	archiverName    = "NSKeyedArchiver"
	archiverVersion = 100000
	nullObject      = "$null"
)

// Keys of the BundleMetadata.plist root dictionary, in archive order.
const (
	KeyBundleIdentifier  = "bundleIdentifier"
	KeyShortVersion      = "bundleShortVersionString"
	KeyBundleVersion     = "bundleVersion"
	KeyProtectedMetadata = "protectedMetadata"
)

var bundleMetadataKeys = []string{KeyBundleIdentifier, KeyShortVersion, KeyBundleVersion, KeyProtectedMetadata}

var dictionaryClass = map[string]interface{}{
	"$classname": "NSMutableDictionary",
	"$classes":   []interface{}{"NSMutableDictionary", "NSDictionary", "NSObject"},
}

// EncodeBundleMetadata produces BundleMetadata.plist as the system
// installer writes it: a binary keyed archive whose root object is an
// NSMutableDictionary. Objects are laid out as $null, the root
// dictionary, the keys, the values and finally the class description.
func EncodeBundleMetadata(v VersionInfo, protected []byte) ([]byte, error) {
	if len(protected) == 0 {
		return nil, errors.New(errors.ErrMetadataMissing, "protected metadata is empty")
	}
	values := []interface{}{v.BundleID, v.ShortVersion, v.Build, protected}

	n := len(bundleMetadataKeys)
	keyRefs := make([]interface{}, n)
	valueRefs := make([]interface{}, n)
	objects := []interface{}{nullObject, nil}
	for i, key := range bundleMetadataKeys {
		keyRefs[i] = plist.UID(len(objects))
		objects = append(objects, key)
	}
	for i, value := range values {
		valueRefs[i] = plist.UID(len(objects))
		objects = append(objects, value)
	}
	classRef := plist.UID(len(objects))
	objects = append(objects, dictionaryClass)
	objects[1] = map[string]interface{}{
		"NS.keys":    keyRefs,
		"NS.objects": valueRefs,
		"$class":     classRef,
	}

	doc := map[string]interface{}{
		"$archiver": archiverName,
		"$version":  archiverVersion,
		"$top":      map[string]interface{}{"root": plist.UID(1)},
		"$objects":  objects,
	}
	data, err := plist.Marshal(doc, plist.BinaryFormat)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPlistEncode, "cannot encode BundleMetadata.plist")
	}
	return data, nil
}

// DecodeKeyedDictionary resolves the root dictionary of a keyed archive
// into a plain map. Values that reference other objects are resolved one
// level deep, which is all BundleMetadata.plist uses.
func DecodeKeyedDictionary(data []byte) (map[string]interface{}, error) {
	var doc struct {
		Archiver string                 `plist:"$archiver"`
		Top      map[string]interface{} `plist:"$top"`
		Objects  []interface{}          `plist:"$objects"`
	}
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrPlistInvalid, "invalid keyed archive")
	}
	if doc.Archiver != archiverName {
		return nil, errors.Newf(errors.ErrPlistInvalid, "unexpected archiver %q", doc.Archiver)
	}

	rootRef, ok := doc.Top["root"].(plist.UID)
	if !ok {
		return nil, errors.New(errors.ErrPlistInvalid, "keyed archive has no root object")
	}
	root, ok := object(doc.Objects, rootRef).(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrPlistInvalid, "keyed archive root is not a dictionary")
	}
	keys, _ := root["NS.keys"].([]interface{})
	values, _ := root["NS.objects"].([]interface{})
	if len(keys) != len(values) {
		return nil, errors.New(errors.ErrPlistInvalid, "keyed archive dictionary is unbalanced")
	}

	out := make(map[string]interface{}, len(keys))
	for i := range keys {
		kref, kok := keys[i].(plist.UID)
		vref, vok := values[i].(plist.UID)
		if !kok || !vok {
			return nil, errors.New(errors.ErrPlistInvalid, "keyed archive dictionary holds inline values")
		}
		key, ok := object(doc.Objects, kref).(string)
		if !ok {
			return nil, errors.New(errors.ErrPlistInvalid, "keyed archive key is not a string")
		}
		out[key] = object(doc.Objects, vref)
	}
	return out, nil
}

func object(objects []interface{}, ref plist.UID) interface{} {
	if int(ref) >= len(objects) {
		return nil
	}
	if s, ok := objects[ref].(string); ok && s == nullObject {
		return nil
	}
	return objects[ref]
}

// ValidateBundleMetadata decodes an encoded archive and checks it
// round-trips the given values.
func ValidateBundleMetadata(data []byte, v VersionInfo, protected []byte) error {
	dict, err := DecodeKeyedDictionary(data)
	if err != nil {
		return err
	}
	for key, want := range map[string]string{
		KeyBundleIdentifier: v.BundleID,
		KeyShortVersion:     v.ShortVersion,
		KeyBundleVersion:    v.Build,
	} {
		if got, _ := dict[key].(string); got != want {
			return errors.Newf(errors.ErrPlistInvalid, "BundleMetadata.plist %s is %q, want %q", key, got, want)
		}
	}
	blob, _ := dict[KeyProtectedMetadata].([]byte)
	if !bytes.Equal(blob, protected) {
		return errors.New(errors.ErrPlistInvalid, "BundleMetadata.plist lost the protected metadata")
	}
	return nil
}
