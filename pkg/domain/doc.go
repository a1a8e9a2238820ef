// Package domain holds the value types shared by the engine, the
// instrument adapters and the API layer: stage positions, detected
// objects, volumes and run records.
package domain
