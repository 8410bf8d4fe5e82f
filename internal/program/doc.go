// Package program runs the external programs behind Turtle processes.
//
// A program is started once per factory generation and is never inspected
// or restarted by the engine; it only stops when its factory is closed.
// Programs come from two places:
//
//   - an in-process Registry, keyed by the document's file_name
//   - "exec:<path>" file names, which run <path> as a supervised subprocess
//
// Example usage:
//
//	reg := program.NewRegistry()
//	reg.Register("quarry", quarry.Run)
//
//	prog, err := reg.Resolve("exec:/opt/factory/miner")
//	if err != nil {
//	    return err
//	}
//	inst := program.Start(ctx, prog, handle)
//	defer inst.Stop(5 * time.Second)
package program
