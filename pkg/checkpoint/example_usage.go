package checkpoint

import (
	"fmt"
	"log"
)

func ExampleManager() {
	// Create a checkpoint manager for a catalogue
	mgr, err := NewManager("plants")
	if err != nil {
		log.Fatal(err)
	}

	// Check if a previous run left state behind
	if mgr.Exists() {
		state, err := mgr.Load()
		if err != nil {
			log.Fatal(err)
		}
		if !state.Completed {
			fmt.Printf("Previous run %s stopped after %d tiles\n", state.RunID, state.Processed)
		}
		// Keep the old state around for post-mortems
		if err := mgr.Backup(); err != nil {
			log.Printf("Failed to backup run state: %v", err)
		}
	}

	// Start a fresh run
	state, err := mgr.Start("8f14e45f-ceea-4e62-9d1c-61d0e41d4a30", 14)
	if err != nil {
		log.Fatal(err)
	}

	// Record progress after each committed batch
	err = mgr.RecordBatch(state, 2000, 1240, 710, 50)
	if err != nil {
		log.Fatal(err)
	}

	// Mark the run finished once the loop exits
	err = mgr.Complete(state)
	if err != nil {
		log.Fatal(err)
	}
}
