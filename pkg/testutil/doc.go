// Package testutil provides fakes and fixtures shared by package tests.
//
// Key components:
//   - MockRunner: testify mock of command.Runner for exact expectations
//   - RecordingRunner: scripted command.Runner that records every call
//   - MockPrivilegedRunner: testify mock of command.PrivilegedRunner
//   - WriteFiles: lays out an in-memory tree on an afero filesystem
//   - NewJSONServer: httptest server answering fixed paths
//
// All fixtures are defined inline by the tests that use them.
package testutil
