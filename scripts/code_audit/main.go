// Command code_audit verifies a directory export against the code grammars:
// every stored code must parse under its scope's grammar, no two records in a
// scope may share a sequence, and gaps are reported for operator review.
// Run it against a JSON dump before and after a reconciliation run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
)

type export struct {
	Schools []models.School `json:"schools"`
	Admins  []models.Admin  `json:"admins"`
	People  []models.Person `json:"people"`
}

type finding struct {
	PersonID string
	Code     string
	Problem  string
}

func main() {
	input := flag.String("input", "export.json", "path to the directory export")
	strict := flag.Bool("strict", false, "exit non-zero when sequence gaps are found")
	flag.Parse()

	raw, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("read export: %v", err)
	}
	var data export
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Fatalf("parse export: %v", err)
	}

	schoolCodes := make(map[string]string, len(data.Schools))
	for _, school := range data.Schools {
		schoolCodes[school.ID] = school.Code
	}

	claiming := make(map[string]string)
	for _, admin := range data.Admins {
		key := admin.SchoolID
		if admin.CampusID != nil {
			key += ":" + *admin.CampusID
		}
		if _, ok := claiming[key]; !ok {
			claiming[key] = admin.Username
		}
	}

	var findings []finding
	sequences := make(map[string][]int)

	for _, person := range data.People {
		if !person.Role.HasCode() {
			continue
		}
		if person.Code == nil || *person.Code == "" {
			findings = append(findings, finding{PersonID: person.ID, Problem: "missing code"})
			continue
		}

		adminUsername := ""
		if person.Role == models.RoleTeacher {
			key := person.SchoolID
			if person.CampusID != nil {
				key += ":" + *person.CampusID
			}
			adminUsername = claiming[key]
		}

		prefix, err := identity.ResolvePrefix(person.Role, adminUsername, schoolCodes[person.SchoolID])
		if err != nil {
			findings = append(findings, finding{PersonID: person.ID, Code: *person.Code, Problem: "no prefix source"})
			continue
		}

		scope := models.AllocationScope{Role: person.Role, SchoolID: person.SchoolID, CampusID: person.CampusID, Prefix: prefix}
		if person.Role == models.RoleStudent {
			// The export carries no per-record year; recover it from the
			// code itself, which embeds it right after the school code.
			year, ok := studentYear(*person.Code, prefix)
			if !ok {
				findings = append(findings, finding{PersonID: person.ID, Code: *person.Code, Problem: "cannot recover academic year from code"})
				continue
			}
			scope.Year = year
		}
		grammar, err := identity.GrammarForScope(scope)
		if err != nil {
			findings = append(findings, finding{PersonID: person.ID, Code: *person.Code, Problem: err.Error()})
			continue
		}

		seq, ok := identity.ParseSequence(grammar, *person.Code)
		if !ok {
			findings = append(findings, finding{PersonID: person.ID, Code: *person.Code, Problem: "code does not match grammar " + identity.SuffixPattern(grammar)})
			continue
		}
		sequences[scope.Key()] = append(sequences[scope.Key()], seq)
	}

	duplicates, gaps := 0, 0
	for key, seqs := range sequences {
		sort.Ints(seqs)
		for i := 1; i < len(seqs); i++ {
			switch {
			case seqs[i] == seqs[i-1]:
				duplicates++
				fmt.Printf("DUPLICATE %s seq=%d\n", key, seqs[i])
			case seqs[i] > seqs[i-1]+1:
				gaps += seqs[i] - seqs[i-1] - 1
				fmt.Printf("GAP       %s missing %d..%d\n", key, seqs[i-1]+1, seqs[i]-1)
			}
		}
	}

	for _, f := range findings {
		fmt.Printf("INVALID   person=%s code=%q: %s\n", f.PersonID, f.Code, f.Problem)
	}

	fmt.Printf("\nchecked %d scopes: %d invalid, %d duplicates, %d gap slots\n",
		len(sequences), len(findings), duplicates, gaps)

	if len(findings) > 0 || duplicates > 0 {
		os.Exit(1)
	}
	if *strict && gaps > 0 {
		os.Exit(1)
	}
}

// studentYear extracts the 4-digit year embedded between the school code and
// the sequence suffix, e.g. NPS2024007 -> 2024.
func studentYear(code, schoolCode string) (int, bool) {
	if !strings.HasPrefix(code, schoolCode) || len(code) < len(schoolCode)+7 {
		return 0, false
	}
	year, err := strconv.Atoi(code[len(schoolCode) : len(schoolCode)+4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
