package main

// main is unused: this command is built as a C archive/shared library
// (go build -buildmode=c-archive) and entered only through its //export
// functions, never through a Go-side main.
func main() {}
