// Package registry provides the model catalog: identity, capabilities,
// pricing, and the rank ordering that drives candidate discovery.
//
// Models are ranked by price tier: rank 1 is the most expensive, higher
// ranks are cheaper. The registry is an immutable snapshot at runtime;
// the only mutation path is Reload, which bumps the registry version and
// notifies registered hooks so dependent caches can invalidate.
//
// # Cost math
//
//	reg := registry.New(registry.DefaultCatalog(), "1.0.0")
//	delta := reg.CostDelta("gpt-4o", "gpt-4o-mini", 500, 200)
//	fmt.Printf("%.1f%% saving", delta.PercentSaving)
//
// # Catalog reload
//
// Catalogs can be loaded from a YAML file and hot-reloaded via Watcher,
// which uses fsnotify to pick up edits and bump the version.
package registry
