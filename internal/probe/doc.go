// Package probe finds the largest inference context window that fits
// entirely inside GPU memory for a served model.
//
// The fit predicate classifies one context size with a single load-only
// invocation plus a memory reading. The search engine brackets the answer
// by probing the advertised maximum first, then the floor, then bisecting
// the interval between them. The orchestrator sweeps candidate models,
// skips ones already recorded, and flushes the result table after every
// model so a multi-hour sweep can be interrupted at any point.
package probe
