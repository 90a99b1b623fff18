package sideload

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/errors"
)

// iTunesMetadata.plist keys the installer reads or writes.
const (
	itunesItemID             = "itemId"
	itunesShortVersion       = "bundleShortVersionString"
	itunesBundleVersion      = "bundleVersion"
	itunesPurchaseDate       = "purchaseDate"
	itunesExternalIdentifier = "softwareVersionExternalIdentifier"
	itunesBundleID           = "softwareVersionBundleId"
)

// VersionInfo identifies an app build.
type VersionInfo struct {
	BundleID     string
	ShortVersion string
	Build        string
}

// PreservedMetadata is everything captured from the live wrapper before
// any destructive step.
type PreservedMetadata struct {
	// ITunes is the complete iTunesMetadata.plist, unknown keys included.
	ITunes       map[string]interface{}
	ITunesFormat int
	Protected    []byte

	ItemID             string
	PurchaseDate       time.Time
	ExternalIdentifier interface{}
}

// Preserve reads the live wrapper's metadata. A wrapper without the
// protected blob cannot be updated safely and yields ErrMetadataMissing.
func Preserve(fs afero.Fs, wrapper string) (PreservedMetadata, error) {
	var pm PreservedMetadata

	itunesPath := filepath.Join(wrapper, bundle.WrapperDir, bundle.ITunesMetadataFile)
	data, err := afero.ReadFile(fs, itunesPath)
	if err != nil {
		return pm, errors.Wrapf(err, errors.ErrMetadataMissing, "cannot read %s", itunesPath)
	}
	format, err := plist.Unmarshal(data, &pm.ITunes)
	if err != nil {
		return pm, errors.Wrapf(err, errors.ErrPlistInvalid, "invalid %s", itunesPath)
	}
	pm.ITunesFormat = format

	if id, ok := pm.ITunes[itunesItemID]; ok {
		pm.ItemID = fmt.Sprint(id)
	}
	if d, ok := pm.ITunes[itunesPurchaseDate].(time.Time); ok {
		pm.PurchaseDate = d
	}
	pm.ExternalIdentifier = pm.ITunes[itunesExternalIdentifier]

	bundlePath := filepath.Join(wrapper, bundle.WrapperDir, bundle.BundleMetadataFile)
	data, err = afero.ReadFile(fs, bundlePath)
	if err != nil {
		return pm, errors.Wrapf(err, errors.ErrMetadataMissing, "cannot read %s", bundlePath)
	}
	dict, err := DecodeKeyedDictionary(data)
	if err != nil {
		return pm, err
	}
	blob, _ := dict[KeyProtectedMetadata].([]byte)
	if len(blob) == 0 {
		return pm, errors.Newf(errors.ErrMetadataMissing, "%s has no protected metadata", bundlePath)
	}
	pm.Protected = blob
	return pm, nil
}

// MergeITunes returns a copy of the preserved metadata with only the
// version fields replaced. The external identifier and every other key
// keep their original values.
func MergeITunes(pm PreservedMetadata, v VersionInfo) map[string]interface{} {
	merged := make(map[string]interface{}, len(pm.ITunes)+2)
	for k, val := range pm.ITunes {
		merged[k] = val
	}
	merged[itunesShortVersion] = v.ShortVersion
	merged[itunesBundleVersion] = v.Build
	return merged
}

// EncodeITunes writes merged metadata in the format the original used.
func EncodeITunes(merged map[string]interface{}, format int) ([]byte, error) {
	if format != plist.BinaryFormat {
		format = plist.XMLFormat
	}
	data, err := plist.Marshal(merged, format)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPlistEncode, "cannot encode iTunesMetadata.plist")
	}

	var check map[string]interface{}
	if _, err := plist.Unmarshal(data, &check); err != nil {
		return nil, errors.Wrap(err, errors.ErrPlistInvalid, "generated iTunesMetadata.plist does not parse")
	}
	return data, nil
}
