// Package wasmkernel is a small process kernel for WebAssembly guests.
//
// Guest programs are core WebAssembly modules that perform file I/O through
// POSIX-style system calls: open, close, read, write, lseek, dup2 and
// _exit. Each process owns a descriptor table mapping small integers to
// open-file handles, which carry a cursor and access mode and refer to a
// vnode on the virtual file system.
//
// # Architecture Overview
//
//	wasmkernel/          Root package with the Memory interface (guest address space)
//	├── runtime/         Loads programs from the VFS and runs each in a process
//	├── engine/          wazero integration and the "kern" host module
//	├── syscalls/        System call handlers and the raw guest ABI
//	├── proc/            Processes, standard stream bootstrap, exit status
//	├── resource/        Descriptor table and reference-counted handles
//	├── vfs/             Virtual file system over go-billy, console and null devices
//	├── uio/             Transfers between guest memory and vnodes
//	├── wasm/            Encoder for guest program binaries
//	├── config/          Settings from dotenv files and the environment
//	└── errors/          Structured error types and errno mapping
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, vfs.NewOS("./root"),
//	    runtime.WithConsole(os.Stdin, os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	status, err := rt.Exec(ctx, "bin/hello.wasm")
//
// # Descriptors
//
// A process starts with descriptors 1 and 2 bound to the console
// (separate write-only opens) and descriptor 0 empty unless stdin binding
// is enabled. open binds the lowest free descriptor. dup2 makes a second
// descriptor share a handle and its cursor. A handle's vnode is closed when
// the last descriptor bound to it is closed and no call is still using it.
//
// System calls return their result, or a negated errno on failure.
package wasmkernel
