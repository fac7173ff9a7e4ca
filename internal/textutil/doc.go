// Package textutil provides tokenization and term-vector similarity used by
// the matching engine's coherence heuristic, plus filename sanitation for
// clip output paths.
package textutil
