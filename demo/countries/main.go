package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/saturnines/nexus-gql/pkg/config"
	"github.com/saturnines/nexus-gql/pkg/core"
	"github.com/saturnines/nexus-gql/pkg/operation"
)

const continentQuery = `
query Continent($code: ID!) {
  continent(code: $code) {
    name
    countries { code name capital }
  }
}`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not loaded:", err)
	}
	if os.Getenv("COUNTRIES_URL") == "" {
		os.Setenv("COUNTRIES_URL", "https://countries.trevorblades.com/")
	}

	cfg, err := config.NewDefaultLoader().Load("demo/countries/countries.yaml")
	if err != nil {
		log.Fatal(err)
	}

	transport, err := core.NewTransport(cfg)
	if err != nil {
		log.Fatal("Failed to create transport:", err)
	}
	defer transport.Close()

	op := operation.MustNew(continentQuery, map[string]interface{}{"code": "OC"})

	resp, err := transport.Do(context.Background(), op)
	if err != nil {
		log.Fatal("Failed to send:", err)
	}

	file, err := os.Create("countries.json")
	if err != nil {
		log.Fatal(err)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.Encode(resp.Data())
	file.Close()

	countries, _ := resp.Traverse("data", "continent", "countries").([]interface{})
	fmt.Printf("Fetched %d countries → countries.json\n", len(countries))
}
