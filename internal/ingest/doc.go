// Package ingest is the measurement-input edge of the scan loop: raw
// channel snapshots from the field-acquisition collaborator, the fixed
// raw-range → engineering-unit scaling contract, and the Source
// implementations (a deterministic simulator for development and an
// MQTT subscriber for deployments).
package ingest
