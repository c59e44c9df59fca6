package report

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultQueries is the built-in evaluation set.
var DefaultQueries = []string{
	"What are the legal grounds for self-defence under Australian law?",
	"Explain how negligence is established in Australian tort law.",
	"What is the difference between manslaughter and murder in Australia?",
	"Under what circumstances can a contract be considered void in Australia?",
	"What are the tenant’s rights in residential lease agreements in Australia?",
	"How does Australian law define defamation?",
	"What are the penalties for insider trading in Australia?",
	"Can a minor be held liable for breach of contract under Australian law?",
	"What is the process of judicial review in Australian administrative law?",
	"What constitutes unfair dismissal under Australian employment law?",
	"Explain the rules around search and seizure under Australian criminal law.",
	"What are the requirements for granting bail in Australia?",
	"Describe the legal concept of duty of care in Australian negligence cases.",
	"What is the role of precedent in the Australian legal system?",
	"How are damages calculated in Australian personal injury cases?",
	"Can a company be found guilty of a criminal offence in Australia?",
	"What are the principles of equity recognized by Australian courts?",
	"How does the Australian High Court handle constitutional disputes?",
	"Explain how family law handles child custody in Australia.",
	"What remedies are available for breach of contract under Australian law?",
}

// LoadQueries reads one query per line. Blank lines and lines starting
// with # are skipped.
func LoadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("query file %s has no queries", path)
	}
	return queries, nil
}
