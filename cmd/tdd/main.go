// Command tdd is the CLI surface (C17) for the Red-Green-Refactor
// orchestrator: run, resume, status, history, and rollback (spec.md §6).
package main

func main() {
	Execute()
}
