// Package runtime runs guest programs as kernel processes.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, vfs.NewOS("./root"),
//	    runtime.WithConsole(os.Stdin, os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	status, err := rt.Exec(ctx, "bin/hello.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(int(status.Code))
//
// # Running a program
//
// Exec loads the image through the VFS, checks it is a core WebAssembly
// module, and creates a process with an empty descriptor table. The
// module is instantiated without running start functions, the standard
// streams are bound to the console, and then "_start" is called with the
// process in the context. The process is torn down when the program
// returns or calls _exit, closing every descriptor it left open.
//
// ExecAll runs several programs at once, each in its own process.
package runtime
