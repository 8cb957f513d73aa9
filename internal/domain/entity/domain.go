package entity

// Domain identifies one analysis specialty.
type Domain string

const (
	// DomainContent analyzes video content performance (titles, thumbnails, retention).
	DomainContent Domain = "content"
	// DomainAudience analyzes audience demographics, sentiment and behavior.
	DomainAudience Domain = "audience"
	// DomainSEO analyzes search optimization (keywords, tags, descriptions).
	DomainSEO Domain = "seo"
	// DomainCompetitive analyzes competitor channels.
	DomainCompetitive Domain = "competitive"
	// DomainMonetization analyzes revenue streams and sponsorship opportunities.
	DomainMonetization Domain = "monetization"
	// DomainGeneral is the fallback for questions that match no specialty with
	// sufficient confidence.
	DomainGeneral Domain = "general"
)

// AllDomains lists the five specialist domains, excluding the general fallback.
func AllDomains() []Domain {
	return []Domain{
		DomainContent,
		DomainAudience,
		DomainSEO,
		DomainCompetitive,
		DomainMonetization,
	}
}

// Valid reports whether the domain is a known specialist domain or the general fallback.
func (d Domain) Valid() bool {
	switch d {
	case DomainContent, DomainAudience, DomainSEO, DomainCompetitive, DomainMonetization, DomainGeneral:
		return true
	}
	return false
}
