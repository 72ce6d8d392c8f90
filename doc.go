/*
Package blocking provides the blocking layer of a record deduplication and
entity resolution pipeline.

Comparing every pair of records is quadratic. A blocker assigns each record
a few block keys with cheap predicates so that only records sharing a key are
ever scored by the pairwise classifier.

# Quick Start

Block a dataset on exact names and on similar addresses:

	package main

	import (
	    "context"
	    "fmt"
	    "log"

	    "github.com/wizenheimer/blocking"
	)

	func main() {
	    ctx := context.Background()
	    data := blocking.Dataset{
	        "1": {"name": "Ada Lovelace", "address": "12 St James Square London"},
	        "2": {"name": "Ada Lovelace", "address": "12 St. James Sq, London"},
	    }

	    blocker, err := blocking.NewBlocker([]blocking.Predicate{
	        blocking.WholeFieldPredicate("name"),
	        blocking.NewTfidfTextCanopyPredicate("address", 0.6),
	    })
	    if err != nil {
	        log.Fatal(err)
	    }

	    // Indexed predicates need their index before emission
	    if err := blocker.Indices().BuildAll(ctx, data); err != nil {
	        log.Fatal(err)
	    }

	    stream := blocker.Emit(ctx, blocking.RecordsOf(data), false)
	    defer stream.Close()
	    for stream.Next() {
	        pair := stream.Pair()
	        fmt.Println(pair.Key, pair.ID)
	    }
	    if err := stream.Err(); err != nil {
	        log.Fatal(err)
	    }
	}

# Predicates

Simple predicates are pure functions of one field (WholeFieldPredicate,
TokenFieldPredicate, CommonSetElementPredicate, ...). Indexed predicates
query a TF-IDF index built over the field's values:

	blocking.NewTfidfTextSearchPredicate("address", 0.8) // near neighbours
	blocking.NewTfidfTextCanopyPredicate("address", 0.6) // canopy clusters

A CompoundPredicate is the conjunction of its members. Each top-level
predicate's keys are tagged with its ordinal so unrelated predicates never
share a block.

# Index Lifecycle

Indices are owned by an IndexManager, one per field and index kind, shared by
every predicate of that group:

	manager := blocker.Indices()
	manager.BuildAll(ctx, data)  // build, one goroutine per field
	manager.Unbuild(ctx, "address", removed)
	manager.Reset()              // release memory between phases

After Reset, an indexed predicate fails with a *StateError until its index is
built again.

# Diagnostics

	sizes, _ := blocker.BlockSizes(ctx, blocking.RecordsOf(data), false)
	stats := blocking.SizeDistribution(sizes, 10)
	pairs := blocking.ProjectedPairs(sizes, nil, 10)
	recall, _ := blocker.RecallEstimate(ctx, trainingPairs)

ProjectedPairs counts n × n pairs for a block of n records and does not
remove pairs blocked by several predicates; real comparison volume is lower.

# Set Similarity

Set-valued fields are compared either by cosine similarity in a TF-IDF space
learned from a corpus, or by the minimum affine gap distance between their
elements:

	v, _ := blocking.NewSetVariable(blocking.FieldDefinition{
	    Field:  "tags",
	    Type:   blocking.SetFieldType,
	    Corpus: [][]string{{"go", "rust"}, {"go"}},
	})
	score, ok := v.Compare([]string{"go"}, []string{"go", "rust"})

# Configuration

Predicates, set fields and tuning can be loaded from YAML with LoadConfig;
see Config.
*/
package blocking
