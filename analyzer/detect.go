package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AnTengye/contractlens/model"
)

type contractSignals struct {
	kind     model.ContractType
	fileKeys []string
	textKeys []*regexp.Regexp
}

// contractTypes is in file-name precedence order: the first type whose
// file-name keyword matches gets the bonus.
var contractTypes = []contractSignals{
	{model.ContractEmployment, []string{"employ", "hiring", "job"}, keywords("employee", "employer", "salary", "probation", "designation", "employment")},
	{model.ContractVendor, []string{"vendor", "supplier", "purchase"}, keywords("vendor", "supplier", "purchase order", "goods", "supply")},
	{model.ContractLease, []string{"lease", "rent", "property"}, keywords("lessor", "lessee", "landlord", "tenant", "rent", "premises", "lease")},
	{model.ContractPartnership, []string{"partner", "jv", "joint"}, keywords("partner", "partnership", "profit sharing", "capital contribution", "joint venture")},
	{model.ContractService, []string{"service", "consult", "agreement"}, keywords("services", "service provider", "deliverables", "consultant", "scope of work")},
	{model.ContractNDA, []string{"nda", "confidential", "disclosure"}, keywords("confidential information", "non-disclosure", "disclosing party", "receiving party")},
}

const fileNameBonus = 3

// DetectContractType scores keywords in the text and file name. Each text
// keyword counts once; a file-name match adds a bonus to the first type it
// names. With no signal at all the contract is treated as a service
// agreement.
func DetectContractType(text, fileName string) model.ContractType {
	scores := make([]int, len(contractTypes))

	name := strings.ToLower(fileName)
fileLoop:
	for i, ct := range contractTypes {
		for _, k := range ct.fileKeys {
			if strings.Contains(name, k) {
				scores[i] += fileNameBonus
				break fileLoop
			}
		}
	}

	for i, ct := range contractTypes {
		for _, re := range ct.textKeys {
			if re.MatchString(text) {
				scores[i]++
			}
		}
	}

	best, bestScore := model.ContractService, 0
	for i, ct := range contractTypes {
		if scores[i] > bestScore {
			best, bestScore = ct.kind, scores[i]
		}
	}
	return best
}

// DetectLanguage classifies text by its share of Devanagari letters.
func DetectLanguage(text string) model.Language {
	letters, devanagari := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Devanagari, r) {
			devanagari++
		}
	}
	if letters == 0 {
		return model.LanguageEnglish
	}
	ratio := float64(devanagari) / float64(letters)
	switch {
	case ratio >= 0.6:
		return model.LanguageHindi
	case ratio >= 0.05:
		return model.LanguageMixed
	}
	return model.LanguageEnglish
}
