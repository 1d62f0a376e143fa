package quest

// RegisteredContract is a contract a founder can attach to a quest
type RegisteredContract struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ContractFunction is a selectable function of a registered contract
type ContractFunction struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}

// FounderContracts is the registry of pre-registered project contracts
var FounderContracts = []RegisteredContract{
	{ID: "contract1", Name: "Contract 1", Address: "0x1230000000000000000000000000000000000001"},
	{ID: "contract2", Name: "Contract 2", Address: "0x4560000000000000000000000000000000000002"},
	{ID: "contract3", Name: "Contract 3", Address: "0x7890000000000000000000000000000000000003"},
}

// FounderFunctions lists the functions a founder can pick from
var FounderFunctions = []ContractFunction{
	{ID: "function1", Signature: "balanceOf(address)"},
	{ID: "function2", Signature: "transfer(address,uint256)"},
	{ID: "function3", Signature: "approve(address,uint256)"},
}

var durationLabels = map[Duration]string{
	Duration7d:  "7 Days",
	Duration14d: "14 Days",
	Duration30d: "30 Days",
	Duration90d: "90 Days",
}

// Label returns the display label of the duration
func (d Duration) Label() string {
	return durationLabels[d]
}

// LookupContract finds a registered contract by id
func LookupContract(id string) (RegisteredContract, bool) {
	for _, c := range FounderContracts {
		if c.ID == id {
			return c, true
		}
	}
	return RegisteredContract{}, false
}

// ResolveFunction maps a catalog id to its signature. Any other value is
// returned unchanged, since community quests enter signatures directly.
func ResolveFunction(value string) string {
	for _, f := range FounderFunctions {
		if f.ID == value {
			return f.Signature
		}
	}
	return value
}

// Catalog groups the constants a wizard UI needs to render its inputs
type Catalog struct {
	Steps      []StepInfo              `json:"steps"`
	Categories map[QuestType][]Category `json:"categories"`
	Durations  []DurationInfo          `json:"durations"`
	Contracts  []RegisteredContract    `json:"contracts"`
	Functions  []ContractFunction      `json:"functions"`
}

// StepInfo is a step with its label
type StepInfo struct {
	Step  Step   `json:"step"`
	Label string `json:"label"`
}

// DurationInfo is a duration code with its label
type DurationInfo struct {
	Code  Duration `json:"code"`
	Label string   `json:"label"`
}

// BuildCatalog returns the wizard constants
func BuildCatalog() Catalog {
	c := Catalog{
		Categories: make(map[QuestType][]Category, len(QuestTypes)),
		Contracts:  append([]RegisteredContract{}, FounderContracts...),
		Functions:  append([]ContractFunction{}, FounderFunctions...),
	}
	for _, s := range StepOrder {
		c.Steps = append(c.Steps, StepInfo{Step: s, Label: s.Label()})
	}
	for _, t := range QuestTypes {
		c.Categories[t] = t.Categories()
	}
	for _, d := range Durations {
		c.Durations = append(c.Durations, DurationInfo{Code: d, Label: d.Label()})
	}
	return c
}
