// Package shared holds code used across packages that belongs to no single
// layer. Its testutil subpackage provides log capture and synthetic sweep
// fixtures for tests.
package shared
