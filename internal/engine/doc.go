// Package engine keeps one factory running and replaces it when its
// document changes.
//
// Three pieces cooperate:
//
//   - Holder owns the current *factory.Factory. A swap replaces the
//     pointer at once; a cycle already running finishes on the factory it
//     started with, which is closed in the background afterwards. Every cycle sees exactly
//     one document.
//   - Scheduler runs cycles back to back, never starting two within the
//     factory's min_cycle_time, and fans each Report out to observers.
//   - Watcher follows the document on disk with fsnotify and rebuilds the
//     factory after a quiet period. A document that fails to load or
//     build is logged and the running factory is kept.
//
// # Usage
//
//	holder := engine.NewHolder(f)
//	sched := engine.NewScheduler(holder)
//	sched.SetLogger(log)
//	sched.AddObserver(metrics)
//
//	watcher := engine.NewWatcher(path, holder, build)
//	go watcher.Run(ctx)
//	err := sched.Run(ctx)
package engine
