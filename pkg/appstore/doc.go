// Package appstore detects and applies Mac App Store updates.
//
// Store-installed apps are found through Spotlight's kMDItemAppStoreAdamID
// attribute, their current listing is fetched from the public iTunes lookup
// API, and updates are applied with the mas command line tool. Wrapped iOS
// apps are fetched as archives for the sideload installer instead.
package appstore
