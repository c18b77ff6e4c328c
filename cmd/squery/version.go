package main

// CLIVersion is reported by `squery --version`.
const CLIVersion = "v0.3.0"
