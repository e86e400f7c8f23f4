// Package pipeline holds the types and interfaces shared by the extract,
// load and export stages: artifact storage, the catalog API client,
// stage-completion notifications and the small clock/id/hash helpers that
// stages receive through their constructors.
package pipeline
