// Package replay defines the two external collaborator contracts the
// optimizer consumes but does not implement: a Replayer that runs test
// conversations against candidate models through a model gateway, and a
// Judge that scores response quality. An Embedder contract supports the
// optional vector similarity path.
//
// Collaborator implementations register themselves by name:
//
//	collab, err := replay.New("openai", cfg)
//	completion, err := collab.Replayer.Replay(ctx, conv, modelCfg)
//
// All implementations issue calls with a timeout and a small bounded
// retry count. A call that fails permanently degrades to a failed
// Completion rather than an error, so one bad sample never aborts a
// verification run.
package replay
