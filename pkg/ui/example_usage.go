// Package ui provides terminal UI components for the coverage probe
// This file demonstrates example usage of the UI components
package ui

/*
Example usage of the UI components:

// Terminal colors and output
ui.PrintLogo()                                   // Print ASCII logo
ui.PrintInfo("Zoom", "14")                       // Cyan label, yellow value
ui.PrintSuccess("Run completed!")                // Green success message
ui.PrintError("Probe failed: %v", err)           // Red error message
ui.PrintWarning("Rate limit approaching")        // Yellow warning message
ui.PrintHighlight("[PROBING]")                   // Magenta highlight message

// Progress tracking
tracker := ui.NewProbeTracker(2000)
tracker.RecordCovered()                          // Count a covered tile
tracker.RecordUncovered()                        // Count an uncovered tile
tracker.RecordFailed()                           // Count a failed probe
tracker.PrintProgress()                          // Print progress bar
tracker.ResetBatch()                             // Start a fresh batch

// Notifications (cross-platform)
notifier := ui.NewNotifier()
notifier.SendNotification("Run Complete", "All pending tiles probed")
notifier.SendError("Error", "Batch commit failed")
notifier.SendSuccess("Success", "Coverage backfilled")

// Direct color usage
fmt.Printf("%s: %s\n", ui.Cyan("Tile"), ui.Yellow("14/9326/4742"))
fmt.Println(ui.Green("✓ covered"))
fmt.Println(ui.Red("✗ failed"))
*/
