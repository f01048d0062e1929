// instrument/products.go
package instrument

// Product describes a margined contract family. Futures and options on the
// same underlying share one entry keyed by the exchange product code.
type Product struct {
	Code        string  `json:"code" yaml:"code"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Exchange    string  `json:"exchange,omitempty" yaml:"exchange,omitempty"`
	Multiplier  int     `json:"multiplier" yaml:"multiplier"`
	MarginRatio float64 `json:"margin_ratio" yaml:"margin_ratio"`
}

var Products = map[string]Product{
	// SHFE / INE
	"CU": {Code: "CU", Name: "copper", Exchange: "SHFE", Multiplier: 5, MarginRatio: 0.10},
	"AL": {Code: "AL", Name: "aluminium", Exchange: "SHFE", Multiplier: 5, MarginRatio: 0.10},
	"ZN": {Code: "ZN", Name: "zinc", Exchange: "SHFE", Multiplier: 5, MarginRatio: 0.10},
	"AU": {Code: "AU", Name: "gold", Exchange: "SHFE", Multiplier: 1000, MarginRatio: 0.08},
	"AG": {Code: "AG", Name: "silver", Exchange: "SHFE", Multiplier: 15, MarginRatio: 0.10},
	"RB": {Code: "RB", Name: "rebar", Exchange: "SHFE", Multiplier: 10, MarginRatio: 0.10},
	"HC": {Code: "HC", Name: "hot rolled coil", Exchange: "SHFE", Multiplier: 10, MarginRatio: 0.10},
	"RU": {Code: "RU", Name: "natural rubber", Exchange: "SHFE", Multiplier: 10, MarginRatio: 0.10},
	"FU": {Code: "FU", Name: "fuel oil", Exchange: "SHFE", Multiplier: 10, MarginRatio: 0.10},
	"SC": {Code: "SC", Name: "crude oil", Exchange: "INE", Multiplier: 1000, MarginRatio: 0.10},

	// DCE
	"I":  {Code: "I", Name: "iron ore", Exchange: "DCE", Multiplier: 100, MarginRatio: 0.12},
	"J":  {Code: "J", Name: "coke", Exchange: "DCE", Multiplier: 100, MarginRatio: 0.12},
	"JM": {Code: "JM", Name: "coking coal", Exchange: "DCE", Multiplier: 60, MarginRatio: 0.12},
	"M":  {Code: "M", Name: "soybean meal", Exchange: "DCE", Multiplier: 10, MarginRatio: 0.08},
	"Y":  {Code: "Y", Name: "soybean oil", Exchange: "DCE", Multiplier: 10, MarginRatio: 0.08},
	"P":  {Code: "P", Name: "palm oil", Exchange: "DCE", Multiplier: 10, MarginRatio: 0.08},
	"C":  {Code: "C", Name: "corn", Exchange: "DCE", Multiplier: 10, MarginRatio: 0.08},
	"A":  {Code: "A", Name: "soybean no.1", Exchange: "DCE", Multiplier: 10, MarginRatio: 0.08},

	// CZCE
	"CF": {Code: "CF", Name: "cotton", Exchange: "CZCE", Multiplier: 5, MarginRatio: 0.08},
	"SR": {Code: "SR", Name: "white sugar", Exchange: "CZCE", Multiplier: 10, MarginRatio: 0.08},
	"TA": {Code: "TA", Name: "PTA", Exchange: "CZCE", Multiplier: 5, MarginRatio: 0.08},
	"MA": {Code: "MA", Name: "methanol", Exchange: "CZCE", Multiplier: 10, MarginRatio: 0.08},
	"FG": {Code: "FG", Name: "glass", Exchange: "CZCE", Multiplier: 20, MarginRatio: 0.10},
	"SA": {Code: "SA", Name: "soda ash", Exchange: "CZCE", Multiplier: 20, MarginRatio: 0.10},
	"AP": {Code: "AP", Name: "apple", Exchange: "CZCE", Multiplier: 10, MarginRatio: 0.10},

	// CFFEX
	"IF": {Code: "IF", Name: "CSI 300 index", Exchange: "CFFEX", Multiplier: 300, MarginRatio: 0.12},
	"IH": {Code: "IH", Name: "SSE 50 index", Exchange: "CFFEX", Multiplier: 300, MarginRatio: 0.12},
	"IC": {Code: "IC", Name: "CSI 500 index", Exchange: "CFFEX", Multiplier: 200, MarginRatio: 0.12},
	"IM": {Code: "IM", Name: "CSI 1000 index", Exchange: "CFFEX", Multiplier: 200, MarginRatio: 0.12},
	"T":  {Code: "T", Name: "10y treasury", Exchange: "CFFEX", Multiplier: 10000, MarginRatio: 0.02},
	"TF": {Code: "TF", Name: "5y treasury", Exchange: "CFFEX", Multiplier: 10000, MarginRatio: 0.02},
	"TS": {Code: "TS", Name: "2y treasury", Exchange: "CFFEX", Multiplier: 20000, MarginRatio: 0.01},

	// index options
	"IO": {Code: "IO", Name: "CSI 300 index option", Exchange: "CFFEX", Multiplier: 100, MarginRatio: 0.12},
	"MO": {Code: "MO", Name: "CSI 1000 index option", Exchange: "CFFEX", Multiplier: 100, MarginRatio: 0.12},
	"HO": {Code: "HO", Name: "SSE 50 index option", Exchange: "CFFEX", Multiplier: 100, MarginRatio: 0.12},

	// exchange traded fund options (8 digit contract codes)
	etfOptionProduct: {Code: etfOptionProduct, Name: "ETF option", Exchange: "SSE", Multiplier: 10000, MarginRatio: 0.15},
}

const etfOptionProduct = "ETFOPT"
