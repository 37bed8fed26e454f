package sector

type alias struct {
	key    string
	sector Sector
}

// aliases normalizes feed-provided sector strings. Keys are lowercase.
// Short, ambiguous keys sit at the end so that containment matching reaches
// the specific entries first.
var aliases = []alias{
	{"healthcare", Healthcare},
	{"health care", Healthcare},
	{"hospitals and physicians clinics", Healthcare},
	{"medical", Healthcare},
	{"pharmaceutical", Healthcare},
	{"pharmaceuticals", Healthcare},
	{"biotechnology", Healthcare},
	{"life sciences", Healthcare},

	{"education", Education},
	{"educational services", Education},
	{"higher education", Education},
	{"schools", Education},
	{"university", Education},

	{"government", Government},
	{"public sector", Government},
	{"government administration", Government},
	{"public administration", Government},
	{"military", Government},
	{"defense", Government},
	{"municipal", Government},

	{"finance", Finance},
	{"financial", Finance},
	{"financial services", Finance},
	{"banking", Finance},
	{"insurance", Finance},
	{"investment", Finance},
	{"accounting", Finance},
	{"fintech", Finance},

	{"legal", Legal},
	{"legal services", Legal},
	{"law firm", Legal},
	{"law practice", Legal},

	{"energy", Energy},
	{"oil & gas", Energy},
	{"oil and gas", Energy},
	{"utilities", Energy},
	{"renewables", Energy},

	{"telecommunication", Telecom},
	{"telecommunications", Telecom},
	{"telecom", Telecom},
	{"communications", Telecom},

	{"technology", Technology},
	{"tech", Technology},
	{"information technology", Technology},
	{"software", Technology},
	{"it services", Technology},
	{"internet", Technology},
	{"computer", Technology},
	{"electronics", Technology},

	{"manufacturing", Manufacturing},
	{"industrial", Manufacturing},
	{"automotive", Manufacturing},
	{"chemicals", Manufacturing},
	{"machinery", Manufacturing},
	{"aerospace", Manufacturing},

	{"construction", Construction},
	{"engineering", Construction},
	{"architecture", Construction},
	{"building materials", Construction},

	{"real estate", RealEstate},
	{"property", RealEstate},
	{"housing", RealEstate},

	{"transportation", Transportation},
	{"transportation/logistics", Transportation},
	{"logistics", Transportation},
	{"transport", Transportation},
	{"shipping", Transportation},
	{"aviation", Transportation},
	{"airline", Transportation},

	{"media", Media},
	{"entertainment", Media},
	{"publishing", Media},
	{"advertising", Media},
	{"marketing", Media},
	{"broadcasting", Media},

	{"retail", Retail},
	{"consumer services", Retail},
	{"consumer goods", Retail},
	{"wholesale", Retail},
	{"e-commerce", Retail},
	{"ecommerce", Retail},

	{"hospitality", Hospitality},
	{"hospitality and tourism", Hospitality},
	{"hotels", Hospitality},
	{"tourism", Hospitality},
	{"travel", Hospitality},
	{"restaurants", Hospitality},
	{"leisure", Hospitality},

	{"agriculture", Agriculture},
	{"agriculture and food production", Agriculture},
	{"farming", Agriculture},
	{"food production", Agriculture},

	{"non-profit", NonProfit},
	{"nonprofit", NonProfit},
	{"not for profit", NonProfit},
	{"charity", NonProfit},
	{"religious", NonProfit},

	{"ngo", NonProfit},
	{"law", Legal},
	{"it", Technology},
}

type tld struct {
	marker string
	// sector is empty for markers that stop the TLD stage without resolving.
	sector Sector
}

var tlds = []tld{
	{".edu", Education},
	{".k12", Education},
	{".ac", Education},
	{".school", Education},
	{".university", Education},
	{".college", Education},
	{".gov", Government},
	{".gob", Government},
	{".gouv", Government},
	{".mil", Government},
	{".bank", Finance},
	{".insurance", Finance},
	{".health", Healthcare},
	{".hospital", Healthcare},
	{".clinic", Healthcare},
	{".dental", Healthcare},
	{".law", Legal},
	{".attorney", Legal},
	{".org", ""},
	{".com", ""},
	{".net", ""},
}

type sectorKeywords struct {
	sector Sector
	words  []string
}

// keywords is scanned top to bottom; the first sector with any hit wins.
// Healthcare precedes Technology so "biotech" is not read as "tech", and
// Education precedes Technology so "Texas Tech University" is a school.
var keywords = []sectorKeywords{
	{Healthcare, []string{
		"hospital", "clinic", "medical", "healthcare", "health system", "health services",
		"health center", "pharma", "pharmacy", "dental", "dentist", "surgery", "surgical",
		"physician", "orthopedic", "pediatric", "cardiology", "oncology", "radiology",
		"laboratory", "biotech", "nursing", "rehab", "hospice", "therapy", "medic",
		"klinik", "krankenhaus", "clinica", "clínica", "hopital", "hôpital", "ospedale",
		"sanidad", "salud", "saude", "gesundheit", "dds",
	}},
	{Education, []string{
		"university", "universidad", "universidade", "universität", "universite", "université",
		"college", "school", "academy", "institute of technology", "education", "kindergarten",
		"campus", "escuela", "escola", "colegio", "schule", "lycée", "lycee", "école", "ecole",
		"isd", "usd",
	}},
	{Government, []string{
		"city of", "county", "municipality", "municipal", "township", "village of", "town of",
		"ministry", "ministerio", "government", "gobierno", "governo", "gouvernement",
		"council", "department of", "state of", "police", "sheriff", "parliament",
		"ayuntamiento", "prefeitura", "municipio", "gemeinde", "commune de", "gov",
	}},
	{Finance, []string{
		"bank", "banco", "banque", "bancorp", "credit union", "financial", "finance", "capital",
		"investment", "insurance", "assurance", "seguros", "versicherung", "wealth",
		"asset management", "securities", "trust company", "mortgage", "lending", "loan",
		"accounting", "accountants", "brokerage", "fintech", "payments", "cpa",
	}},
	{Legal, []string{
		"law firm", "law office", "attorney", "lawyer", "legal", "solicitors", "barristers",
		"abogados", "avocats", "rechtsanwalt", "advocaten", "notary", "notaire",
		"law", "llp", "esq",
	}},
	{Energy, []string{
		"energy", "energia", "énergie", "power", "electric", "utility", "utilities",
		"petroleum", "oil and gas", "solar", "renewable", "pipeline", "nuclear", "fuel",
		"oil", "gas",
	}},
	{Telecom, []string{
		"telecom", "telecommunications", "telecomunicaciones", "wireless", "broadband",
		"mobile network", "cable", "fiber", "fibre",
	}},
	{Technology, []string{
		"technology", "technologies", "software", "tech", "systems", "digital", "cloud",
		"cyber", "computer", "computing", "network", "semiconductor", "electronics",
		"informatica", "informatique", "it services", "it", "ai",
	}},
	{Manufacturing, []string{
		"manufacturing", "manufacturer", "industries", "industrial", "factory", "steel",
		"metal", "plastics", "chemical", "automotive", "machinery", "fabrication", "textile",
		"packaging", "foundry", "precision", "components", "fertigung", "industria",
		"industrie", "mfg",
	}},
	{Construction, []string{
		"construction", "builders", "building", "contractor", "contracting", "engineering",
		"architects", "architecture", "roofing", "plumbing", "hvac", "concrete", "paving",
		"construcciones", "construtora", "bauunternehmen", "bau",
	}},
	{RealEstate, []string{
		"real estate", "realty", "properties", "property", "realtor", "housing", "apartments",
		"immobilien", "inmobiliaria", "imobiliaria", "homes",
	}},
	{Transportation, []string{
		"logistics", "logistica", "logística", "transport", "freight", "shipping", "trucking",
		"airline", "airport", "aviation", "railway", "cargo", "courier", "delivery",
		"maritime", "port of", "spedition",
	}},
	{Media, []string{
		"media", "marketing", "advertising", "publishing", "news", "broadcasting", "studio",
		"entertainment", "magazine", "press", "radio", "television", "film", "records",
		"tv", "fm",
	}},
	{Retail, []string{
		"retail", "store", "supermarket", "market", "wholesale", "outlet", "boutique",
		"fashion", "apparel", "clothing", "furniture", "grocery", "foods", "beverage",
		"distribution", "trading",
	}},
	{Hospitality, []string{
		"hotel", "resort", "restaurant", "casino", "hospitality", "tourism", "travel",
		"catering", "cafe", "café", "hostel", "motel", "gastronomie",
		"inn", "spa", "bar", "pub",
	}},
	{Agriculture, []string{
		"agriculture", "agricultural", "farm", "agro", "dairy", "seeds", "livestock",
		"cattle", "harvest", "agrícola", "agricola",
	}},
	{NonProfit, []string{
		"foundation", "charity", "charitable", "church", "ministries", "association",
		"nonprofit", "non-profit", "society", "fundación", "fundacion", "stiftung", "ngo",
	}},
}
