// Command app runs the PDF-to-audio desktop client. Frontend assets are
// served from ./frontend relative to the working directory.
package main

import (
	"log"

	"pdf-audio/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}
	if failures := app.GetDiagnostics().Failures(); len(failures) > 0 {
		for _, item := range failures {
			log.Printf("diagnostic %s: %s", item.ID, item.Message)
		}
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
