package sideload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

func TestBundleMetadataTopology(t *testing.T) {
	v := VersionInfo{BundleID: "com.example.game", ShortVersion: "3.1", Build: "310"}
	data, err := EncodeBundleMetadata(v, protectedBlob)
	require.NoError(t, err)

	var doc map[string]interface{}
	format, err := plist.Unmarshal(data, &doc)
	require.NoError(t, err)
	assert.Equal(t, plist.BinaryFormat, format)
	assert.Equal(t, "NSKeyedArchiver", doc["$archiver"])
	assert.Equal(t, uint64(100000), doc["$version"])
	assert.Equal(t, map[string]interface{}{"root": plist.UID(1)}, doc["$top"])

	objects := doc["$objects"].([]interface{})
	require.Len(t, objects, 11)
	assert.Equal(t, "$null", objects[0])
	assert.Equal(t, []interface{}{"bundleIdentifier", "bundleShortVersionString", "bundleVersion", "protectedMetadata"}, objects[2:6])
	assert.Equal(t, []interface{}{"com.example.game", "3.1", "310", protectedBlob}, objects[6:10])

	root := objects[1].(map[string]interface{})
	assert.Equal(t, []interface{}{plist.UID(2), plist.UID(3), plist.UID(4), plist.UID(5)}, root["NS.keys"])
	assert.Equal(t, []interface{}{plist.UID(6), plist.UID(7), plist.UID(8), plist.UID(9)}, root["NS.objects"])
	assert.Equal(t, plist.UID(10), root["$class"])
	assert.Equal(t, "NSMutableDictionary", objects[10].(map[string]interface{})["$classname"])

	require.NoError(t, ValidateBundleMetadata(data, v, protectedBlob))
	err = ValidateBundleMetadata(data, VersionInfo{BundleID: "com.example.game", ShortVersion: "3.2", Build: "310"}, protectedBlob)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPlistInvalid))
}

func TestEncodeBundleMetadataRequiresBlob(t *testing.T) {
	_, err := EncodeBundleMetadata(VersionInfo{BundleID: "x"}, nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMetadataMissing))
}

func TestDecodeKeyedDictionaryRejectsPlainPlist(t *testing.T) {
	data, err := plist.Marshal(map[string]interface{}{"bundleVersion": "1"}, plist.XMLFormat)
	require.NoError(t, err)

	_, err = DecodeKeyedDictionary(data)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPlistInvalid))

	_, err = DecodeKeyedDictionary([]byte("garbage"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrPlistInvalid))
}

func TestMergeITunesKeepsEverythingButVersions(t *testing.T) {
	pm := PreservedMetadata{ITunes: map[string]interface{}{
		"bundleShortVersionString":          "1.0",
		"bundleVersion":                     "100",
		"softwareVersionExternalIdentifier": uint64(42),
		"artistName":                        "Example",
	}}
	merged := MergeITunes(pm, VersionInfo{ShortVersion: "2.0", Build: "200"})

	assert.Equal(t, "2.0", merged["bundleShortVersionString"])
	assert.Equal(t, "200", merged["bundleVersion"])
	assert.Equal(t, uint64(42), merged["softwareVersionExternalIdentifier"])
	assert.Equal(t, "Example", merged["artistName"])
	assert.Equal(t, "1.0", pm.ITunes["bundleShortVersionString"], "preserved copy is not modified")
}
