// Package mock provides test doubles for the ai package interfaces.
//
// The mocks default to deterministic behavior (hash-derived embedding
// vectors, echoed answers) so tests stay reproducible without an AI
// service. Behavior can be overridden per test via the public function
// fields on each mock.
package mock
