package entity

func text(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Kind: KindString}
	}
	return out
}

func ref(name string) Field { return Field{Name: name, Kind: KindString} }

func requiredRef(name string) Field { return Field{Name: name, Kind: KindString, Required: true} }

func number(name string) Field { return Field{Name: name, Kind: KindNumber} }

func date(name string) Field { return Field{Name: name, Kind: KindDate} }

func fields(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	latitude  = Field{Name: "latitude", Kind: KindNumber, Validate: "latitude"}
	longitude = Field{Name: "longitude", Kind: KindNumber, Validate: "longitude"}
)

// DefaultSchemas lists the directory vocabulary in catalog order.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Type:      TaxonomyTerm,
			Table:     "taxonomy_term_translations",
			Dataset:   "taxonomy_term",
			KeyField:  "taxonomy_term_id",
			Localized: true, Canonical: true,
			Fields:      fields(text("term", "description", "taxonomy"), []Field{ref("parent_id")}, text("language")),
			ForeignKeys: []ForeignKey{{Field: "parent_id", References: TaxonomyTerm}},
		},
		{
			Type:      Organization,
			Table:     "organization_translations",
			Dataset:   "organization",
			KeyField:  "organization_id",
			Localized: true, Canonical: true,
			Fields: fields(
				text("name", "alternate_name", "description", "short_description", "url", "tax_id", "legal_status", "email", "tax_status"),
				[]Field{number("year_incorporated")},
			),
		},
		{
			Type:      Program,
			Table:     "program_translations",
			KeyField:  "program_id",
			Localized: true, Canonical: true,
			Fields:      fields([]Field{requiredRef("organization_id")}, text("name", "alternate_name")),
			ForeignKeys: []ForeignKey{{Field: "organization_id", References: Organization}},
		},
		{
			Type:      Service,
			Table:     "service_translations",
			Dataset:   "service",
			KeyField:  "service_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{requiredRef("organization_id"), ref("program_id")},
				text("name", "alternate_name", "description", "short_description", "url", "email", "status",
					"interpretation_services", "application_process", "fees", "taxonomy_ids", "emergency_info",
					"wait_time", "accreditations", "licenses"),
			),
			ForeignKeys: []ForeignKey{
				{Field: "organization_id", References: Organization},
				{Field: "program_id", References: Program},
			},
		},
		{
			Type:      Location,
			Table:     "location_translations",
			Dataset:   "com_location",
			KeyField:  "location_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{requiredRef("organization_id")},
				text("name", "description", "short_description", "transportation"),
				[]Field{latitude, longitude},
				text("alternate_name"),
			),
			ForeignKeys: []ForeignKey{{Field: "organization_id", References: Organization}},
		},
		{
			Type:        PhysicalAddress,
			Table:       "physical_address",
			Dataset:     "physical_address",
			KeyField:    "id",
			Fields:      fields([]Field{requiredRef("location_id")}, addressFields()),
			ForeignKeys: []ForeignKey{{Field: "location_id", References: Location}},
		},
		{
			Type:        PostalAddress,
			Table:       "postal_address",
			Dataset:     "postal_address",
			KeyField:    "id",
			Fields:      fields([]Field{requiredRef("location_id")}, addressFields()),
			ForeignKeys: []ForeignKey{{Field: "location_id", References: Location}},
		},
		{
			Type:      AccessibilityForDisabilities,
			Table:     "accessibility_for_disabilities_translations",
			Dataset:   "accessibility_for_disabilities",
			KeyField:  "accessibility_for_disabilities_id",
			Localized: true, Canonical: true,
			Fields:      fields([]Field{requiredRef("location_id")}, text("accessibility")),
			ForeignKeys: []ForeignKey{{Field: "location_id", References: Location}},
		},
		{
			Type:      Contact,
			Table:     "contact_translations",
			KeyField:  "contact_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{ref("organization_id"), ref("service_id"), ref("service_at_location_id")},
				text("name", "title", "department", "email"),
			),
			ForeignKeys: []ForeignKey{
				{Field: "organization_id", References: Organization},
				{Field: "service_id", References: Service},
				{Field: "service_at_location_id", References: ServiceAtLocation},
			},
		},
		{
			Type:      Eligibility,
			Table:     "eligibility_translations",
			Dataset:   "eligibility",
			KeyField:  "eligibility_id",
			Localized: true, Canonical: true,
			Fields:      fields([]Field{requiredRef("service_id")}, text("description")),
			ForeignKeys: []ForeignKey{{Field: "service_id", References: Service}},
		},
		{
			Type:     Language,
			Table:    "language",
			Dataset:  "language",
			KeyField: "id",
			Fields:   fields([]Field{ref("service_id"), ref("location_id")}, text("language")),
			ForeignKeys: []ForeignKey{
				{Field: "service_id", References: Service},
				{Field: "location_id", References: Location},
			},
		},
		{
			Type:      PaymentAccepted,
			Table:     "payment_accepted_translations",
			KeyField:  "payment_accepted_id",
			Localized: true, Canonical: true,
			Fields:      fields([]Field{requiredRef("service_id")}, text("payment")),
			ForeignKeys: []ForeignKey{{Field: "service_id", References: Service}},
		},
		{
			Type:      Phone,
			Table:     "phone_translations",
			Dataset:   "phone",
			KeyField:  "phone_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{ref("organization_id"), ref("location_id"), ref("service_at_location_id"), ref("service_id"), ref("contact_id")},
				text("number", "extension", "description", "type", "language"),
			),
			ForeignKeys: []ForeignKey{
				{Field: "organization_id", References: Organization},
				{Field: "location_id", References: Location},
				{Field: "service_at_location_id", References: ServiceAtLocation},
				{Field: "service_id", References: Service},
				{Field: "contact_id", References: Contact},
			},
		},
		{
			Type:      RequiredDocument,
			Table:     "required_document_translations",
			KeyField:  "required_document_id",
			Localized: true, Canonical: true,
			Fields:      fields([]Field{requiredRef("service_id")}, text("document", "uri")),
			ForeignKeys: []ForeignKey{{Field: "service_id", References: Service}},
		},
		{
			Type:      Schedule,
			Table:     "schedule_translations",
			Dataset:   "schedule",
			KeyField:  "schedule_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{ref("service_id")},
				text("description"),
				[]Field{ref("location_id"), ref("service_at_location_id"), date("valid_from"), date("valid_to"), date("dtstart"), date("until")},
				text("wkst", "freq"),
				[]Field{number("interval")},
				text("byday", "byweekno", "bymonthday", "byyearday", "opens_at", "closes_at"),
				[]Field{number("count")},
			),
			ForeignKeys: []ForeignKey{
				{Field: "service_id", References: Service},
				{Field: "location_id", References: Location},
				{Field: "service_at_location_id", References: ServiceAtLocation},
			},
		},
		{
			Type:      ServiceArea,
			Table:     "service_area_translations",
			Dataset:   "service_area",
			KeyField:  "service_area_id",
			Localized: true, Canonical: true,
			Fields:      fields(text("description", "extent", "extent_type"), []Field{requiredRef("service_id")}, text("service_area")),
			ForeignKeys: []ForeignKey{{Field: "service_id", References: Service}},
		},
		{
			Type:      ServiceAtLocation,
			Table:     "service_at_location_translations",
			Dataset:   "service_at_location",
			KeyField:  "service_at_location_id",
			Localized: true, Canonical: true,
			Fields:    fields([]Field{requiredRef("service_id"), requiredRef("location_id")}, text("description")),
			ForeignKeys: []ForeignKey{
				{Field: "service_id", References: Service},
				{Field: "location_id", References: Location},
			},
		},
		{
			Type:     ServiceAttribute,
			Table:    "service_attribute",
			Dataset:  "service_attribute",
			KeyField: "id",
			Fields:   []Field{requiredRef("service_id"), requiredRef("taxonomy_term_id")},
			ForeignKeys: []ForeignKey{
				{Field: "service_id", References: Service},
				{Field: "taxonomy_term_id", References: TaxonomyTerm},
			},
		},
		{
			Type:      Search,
			Table:     "c_search_translations",
			Dataset:   "com_search",
			KeyField:  "c_search_id",
			Localized: true, Canonical: true,
			Fields: fields(
				[]Field{ref("service_id"), ref("service_at_location_id"), ref("location_id"), ref("organization_id")},
				text("service_name", "service_description", "service_short_description", "organization_description",
					"organization_short_description", "website", "phone", "service_area", "taxonomy_terms",
					"taxonomy_codes", "organization_name", "location_name"),
				[]Field{latitude, longitude},
				text("physical_address", "physical_address_city", "physical_address_state", "physical_address_postal_code",
					"physical_address_region", "physical_address_country", "language", "focus_population",
					"payment_accepted", "age_group"),
			),
			ForeignKeys: []ForeignKey{
				{Field: "service_id", References: Service},
				{Field: "service_at_location_id", References: ServiceAtLocation},
				{Field: "location_id", References: Location},
				{Field: "organization_id", References: Organization},
			},
		},
	}
}

func addressFields() []Field {
	return text("address_1", "city", "region", "state_province", "postal_code", "country", "attention")
}
