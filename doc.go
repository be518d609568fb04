// Package modelopt recommends cheaper LLM models for a user's workload
// without sacrificing answer quality.
//
// The pipeline runs in three layers. Discovery finds registry models
// cheaper than the user's current one and prices the switch against
// their traffic shape. Ranking scores candidates 0-100 for use-case
// fit. Verification replays real or synthetic conversations on the
// survivors through an external gateway, judges the responses with an
// LLM judge, and screens results through deterministic, heuristic, and
// judged stages under a hard spend budget. The orchestrator retries
// with a narrowing price band when nothing passes, then renders a
// business-readable recommendation or a structured no-recommendation.
//
// Each subpackage can be used independently:
//
//   - registry: versioned model catalog with pricing, ranks, and cost math
//   - profile: per-user model, constraints, and traffic estimates
//   - cache: TTL plus version-tagged key/value cache with scoped eviction
//   - history: append-only chat history with similarity matching
//   - replay: gateway collaborator contracts and the OpenAI implementation
//   - optimizer: the three selection layers and the orchestrator
//   - tokens: token count estimation
//   - config: layered .env / TOML / environment configuration
//
// # Quick Start
//
//	reg := registry.New(registry.DefaultCatalog(), registry.DefaultCatalogVersion)
//	mgr := cache.NewManager(cache.NewMemStore())
//	reg.OnVersionChange(mgr.HandleVersionChange)
//
//	collab, _ := replay.New("openai", gatewayCfg)
//	orch := optimizer.New(optimizer.Deps{
//		Registry: reg,
//		Profiles: profile.NewMemStore(),
//		Cache:    mgr,
//		History:  history.NewService(history.NewMemStore()),
//		Replayer: collab.Replayer,
//		Judge:    collab.Judge,
//	}, optimizer.DefaultThresholds())
//
//	outcome, err := orch.RunOptimization(ctx, "user-1", 6, 3)
//
// Open wires all of the above from a config.Config, including the
// SQLite-backed stores and the catalog watcher:
//
//	cfg, _ := config.Load("modelopt.toml")
//	sys, err := modelopt.Open(cfg, slog.Default())
//	defer sys.Close()
package modelopt
