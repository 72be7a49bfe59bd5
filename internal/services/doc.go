// Package services holds cross-cutting helpers shared by the workflow,
// store, and transport layers: the sentinel error taxonomy plus context
// annotation for product, stage, actor, and request identifiers.
package services
