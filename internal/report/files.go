package report

// Files at the root of a results tree.
const (
	ConfigFile = "config.json"
	ReportFile = "report.json"
	IndexFile  = "index.html"
)

// Files inside a <slug>/<golden> directory.
const (
	CandidateFile = "candidate.png"
	GoldenFile    = "golden.png"
	DeltaFile     = "delta.png"
	BooleanFile   = "boolean.png"
	AnalysisFile  = "analysis.json"
	SheetFile     = "sheet.png"
)

// ViewOrder is the left-to-right order of the images of one comparison.
var ViewOrder = []string{CandidateFile, BooleanFile, DeltaFile, GoldenFile}
