package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/pack"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// RunREPL runs the interactive review loop.
func (a *App) RunREPL(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("Type /help for commands.")

	for {
		fmt.Print("ruleforge> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			a.handleCommand(ctx, scanner, input)
			continue
		}

		// Bare text runs an extraction intake.
		a.runIntake(ctx, extract.Source{Text: input}, "")
	}
}

func (a *App) handleCommand(ctx context.Context, scanner *bufio.Scanner, input string) {
	parts := strings.Fields(input)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /project <id>          - Select the working project")
		fmt.Println("  /extract <type> <text> - Extract candidates with a category hint")
		fmt.Println("  /list                  - List candidates (current filter)")
		fmt.Println("  /filter [cat] [query]  - Set the view filter (no args clears it)")
		fmt.Println("  /summary               - Count candidates by category")
		fmt.Println("  /approve <n>           - Approve candidate n")
		fmt.Println("  /discard <n>           - Discard candidate n")
		fmt.Println("  /severity <n> <sev>    - Change severity (CRITICAL/MAJOR/MINOR/INFO)")
		fmt.Println("  /edit <n>              - Replace candidate text (end with a lone .)")
		fmt.Println("  /pack <name>           - Submit approved candidates as a pack")
		fmt.Println("  quit/exit              - Exit")
		fmt.Println()
		fmt.Println("Or type guideline text to extract candidates from it.")

	case "/project":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: /project <id>")
			return
		}
		if err := a.selectProject(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

	case "/extract":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: /extract <type> <text>")
			return
		}
		a.runIntake(ctx, extract.Source{Text: strings.Join(args[1:], " ")}, args[0])

	case "/list":
		view := a.session.View()
		if len(view) == 0 {
			fmt.Println("No candidates.")
			return
		}
		printCandidates(view, 0)

	case "/filter":
		criteria := review.Criteria{}
		if len(args) > 0 && args[0] != "*" {
			if !rule.Category(args[0]).IsValid() {
				fmt.Fprintf(os.Stderr, "Unknown category %q\n", args[0])
				return
			}
			criteria.Category = rule.Category(args[0])
		}
		if len(args) > 1 {
			criteria.Query = strings.Join(args[1:], " ")
		}
		a.session.SetCriteria(criteria)
		fmt.Printf("%d candidates match.\n", len(a.session.View()))

	case "/summary":
		s := a.session.Summary()
		fmt.Printf("code: %d  design: %d  naming: %d  performance: %d  template: %d  total: %d\n",
			s.Code, s.Design, s.Naming, s.Performance, s.Template, s.Total)

	case "/approve":
		a.candidateAction(args, "Usage: /approve <n>", a.session.Approve)

	case "/discard":
		a.candidateAction(args, "Usage: /discard <n>", a.session.Discard)

	case "/severity":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: /severity <n> <severity>")
			return
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid index %q\n", args[0])
			return
		}
		sev := rule.Severity(strings.ToUpper(args[1]))
		if err := a.session.SetSeverity(i, sev); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("Candidate %d severity set to %s.\n", i, sev)

	case "/edit":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: /edit <n>")
			return
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid index %q\n", args[0])
			return
		}
		fmt.Println("Enter replacement YAML, end with a lone '.' line:")
		var lines []string
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "." {
				break
			}
			lines = append(lines, line)
		}
		text := strings.Join(lines, "\n") + "\n"
		parseErr, err := a.session.EditText(i, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		if parseErr != nil {
			fmt.Printf("Edit accepted, but the text does not parse: %v\n", parseErr)
		} else {
			fmt.Println("Edit accepted.")
		}

	case "/pack":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: /pack <name>")
			return
		}
		a.submitPack(ctx, args[0])

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %s (try /help)\n", cmd)
	}
}

func (a *App) candidateAction(args []string, usage string, action func(int) error) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid index %q\n", args[0])
		return
	}
	if err := action(i); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	c, _ := a.session.Get(i)
	fmt.Printf("Candidate %d is now %s.\n", i, c.Status)
}

func (a *App) runIntake(ctx context.Context, src extract.Source, ruleType string) {
	issued, err := a.session.BeginIntake()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	defer a.session.EndIntake()

	candidates, err := a.intake.Intake(ctx, src, extract.Context{
		RuleType:  rule.Category(ruleType),
		ProjectID: issued.ID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		return
	}

	offset := a.session.Len()
	a.session.Append(candidates...)
	fmt.Printf("%d candidate(s):\n", len(candidates))
	printCandidates(candidates, offset)
}

func (a *App) submitPack(ctx context.Context, name string) {
	if err := a.session.BeginSubmit(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	defer a.session.EndSubmit()

	sub, err := pack.Assemble(name, a.session.Snapshot(), a.session.Project())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	receipt, err := a.packs.Submit(ctx, sub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submission failed: %v\n", err)
		return
	}

	slug := pack.Slugify(name)
	if record, err := a.packStore.Create(ctx, slug, sub); err == nil {
		now := time.Now()
		record.Receipt = receipt
		record.SubmittedAt = &now
		_ = a.packStore.Save(ctx, record)
	} else {
		a.logger.Warn("Failed to save pack record", "slug", slug, "error", err)
	}

	fmt.Printf("Submitted pack %q with %d rule(s).\n", name, len(sub.Rules))
}

// printCandidates renders candidates with their store positions, starting
// at offset.
func printCandidates(candidates []review.Candidate, offset int) {
	for i, c := range candidates {
		id := c.DerivedID
		if id == "" {
			id = "(unparsed)"
		}
		sev := string(c.DerivedSeverity)
		if sev == "" {
			sev = "-"
		}
		fmt.Printf("  [%d] %-10s %-12s %-8s conf=%.2f  %s\n",
			offset+i, c.Status, c.Category, sev, c.Confidence, id)
	}
}
