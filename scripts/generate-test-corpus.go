//go:build ignore

// Package main generates a synthetic document corpus for ingestion and
// retrieval benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// mdTemplate models a long-form knowledge-base article: several headed
// sections, enough text per section to span multiple chunks.
var mdTemplate = `# %s

## Overview

%s is the system of record for %s. This document describes how it is
configured, how requests flow through it, and what operators should
watch when it misbehaves.

## Architecture

The %s pipeline accepts a request, validates it against the current
%s policy, and forwards it to the downstream %s handler. Under load the
handler queues work rather than rejecting it outright, so latency
degrades before availability does.

## Configuration

| Option | Type | Default | Description |
|--------|------|---------|-------------|
| timeout_seconds | int | 30 | Request timeout |
| max_retries | int | 3 | Retry attempts before giving up |
| %s_enabled | bool | true | Toggles %s handling |

## Operational notes

%s failures usually surface as elevated p99 latency on the %s endpoint
before they show up as hard errors. Check the %s dashboard first; a
sustained rise there predicts %s saturation minutes before the alerting
rules fire.

## Troubleshooting

- If %s reports degraded, restart the %s worker pool.
- A spike in %s retries usually means the downstream %s dependency is
  the bottleneck, not this service.
- %s configuration changes take effect on the next %s restart, not
  immediately.
`

// textTemplate models a short incident-report-style plain-text document.
var textTemplate = `%s incident report

Summary: %s experienced a %s-related disruption affecting the %s path.

Timeline:
- Detection: automated %s alert fired.
- Mitigation: %s traffic was shifted away from the affected %s instance.
- Resolution: root cause traced to a misconfigured %s threshold.

Follow-up: add a regression test covering %s under %s load, and tighten
the %s alert threshold so the next %s incident pages sooner.
`

// codeCommentTemplate models a code file with substantial prose comments,
// the kind of source a documentation-aware chunker needs to handle alongside
// prose, exercising the code-aware chunking strategy.
var codeCommentTemplate = `package %s

// %s coordinates %s for the %s subsystem. It exists because the naive
// approach of calling %s synchronously on every request made the %s
// path the dominant source of tail latency; this type batches those
// calls and applies backpressure instead.
type %s struct {
	queue   chan request
	workers int
}

// New%s builds a %s sized for the expected %s throughput. Passing zero
// workers falls back to runtime.NumCPU, matching how the rest of the
// %s package sizes its pools.
func New%s(workers int) *%s {
	return &%s{queue: make(chan request, 1024), workers: workers}
}

// Submit enqueues a %s request. It returns immediately; callers that
// need the result should use SubmitAndWait instead.
func (s *%s) Submit(req request) {
	s.queue <- req
}

type request struct {
	id   string
	kind string
}
`

var (
	nouns = []string{
		"billing", "authentication", "ingestion", "retrieval", "indexing",
		"caching", "replication", "scheduling", "routing", "reconciliation",
		"provisioning", "notification", "reporting", "auditing", "migration",
	}
	adjectives = []string{
		"async", "distributed", "regional", "tenant-scoped", "sharded",
		"eventual", "strongly-consistent", "best-effort", "rate-limited", "idempotent",
	}
	subsystems = []string{
		"gateway", "scheduler", "worker pool", "coordinator", "broker",
		"cache layer", "storage tier", "control plane", "admission queue", "dispatcher",
	}
)

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	subdirs := []string{"markdown", "text", "code"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(*outputDir, subdir), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", subdir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	mdFiles := *numFiles * 60 / 100
	textFiles := *numFiles * 20 / 100
	codeFiles := *numFiles - mdFiles - textFiles

	generated := 0
	for i := 0; i < mdFiles; i++ {
		if err := generateMarkdownFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating markdown file %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < textFiles; i++ {
		if err := generateTextFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating text file %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < codeFiles; i++ {
		if err := generateCodeFile(i); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating code file %d: %v\n", i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func generateMarkdownFile(index int) error {
	noun := randomWord(nouns)
	subsystem := randomWord(subsystems)
	title := fmt.Sprintf("%s %s runbook", noun, subsystem)

	content := fmt.Sprintf(mdTemplate,
		title,
		noun, subsystem,
		noun, noun, subsystem,
		noun, noun,
		noun, noun, noun, noun,
		noun, subsystem,
		noun, subsystem,
		noun, noun,
	)

	filename := filepath.Join(*outputDir, "markdown", fmt.Sprintf("%s_%d.md", noun, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateTextFile(index int) error {
	noun := randomWord(nouns)
	subsystem := randomWord(subsystems)

	content := fmt.Sprintf(textTemplate,
		noun,
		subsystem, noun, subsystem,
		noun,
		subsystem, subsystem,
		noun,
		noun, subsystem,
		noun, noun,
	)

	filename := filepath.Join(*outputDir, "text", fmt.Sprintf("%s_incident_%d.txt", noun, index))
	return os.WriteFile(filename, []byte(content), 0644)
}

func generateCodeFile(index int) error {
	noun := randomWord(nouns)
	adj := randomWord(adjectives)
	typeName := fmt.Sprintf("%sCoordinator", adj)

	content := fmt.Sprintf(codeCommentTemplate,
		fmt.Sprintf("pkg%d", index),
		typeName, noun, noun,
		noun, noun,
		typeName,
		typeName, typeName, noun,
		noun,
		typeName, typeName, typeName,
		noun,
		typeName,
	)

	filename := filepath.Join(*outputDir, "code", fmt.Sprintf("%s_%d.go", noun, index))
	return os.WriteFile(filename, []byte(content), 0644)
}
