package main

import (
	"flag"
	"log"

	"github.com/danmuck/neuraflow/internal/config"
)

func main() {
	kind := flag.String("kind", config.KindBroker, "config kind: broker|llmworker")
	output := flag.String("output", "", "output path for config template (defaults to per-kind cmd path)")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			p, err := config.DefaultPath(*kind)
			if err != nil {
				log.Fatal(err)
			}
			path = p
		}
		if err := config.Validate(*kind, path); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		p, err := config.DefaultPath(*kind)
		if err != nil {
			log.Fatal(err)
		}
		target = p
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
