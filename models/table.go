// models/table.go
package models

import (
	"fmt"
	"strings"
)

// Table identifies one of the three GDELT 2.1 record tables. Every piece of
// per-table behavior (file naming, column layout, collection name, natural
// key) hangs off this enum instead of being re-branched at each call site.
type Table string

const (
	TableEvents   Table = "events"
	TableMentions Table = "mentions"
	TableGKG      Table = "gkg"
)

// Tier is the processing stage of a local file: "raw" as published by GDELT,
// "clean" after normalization.
type Tier string

const (
	TierRaw   Tier = "raw"
	TierClean Tier = "clean"
)

// AllTables returns the three tables in the project's conventional order.
func AllTables() []Table {
	return []Table{TableEvents, TableMentions, TableGKG}
}

// ParseTable validates a user-supplied table name.
func ParseTable(s string) (Table, error) {
	switch Table(s) {
	case TableEvents, TableMentions, TableGKG:
		return Table(s), nil
	}
	return "", fmt.Errorf("unknown table %q, must be one of 'events', 'mentions', 'gkg'", s)
}

// Extension is the publisher's per-table file suffix. The casing difference
// on gkg is GDELT's, not ours, and must be preserved bit-exactly.
func (t Table) Extension() string {
	switch t {
	case TableEvents:
		return "export.CSV"
	case TableMentions:
		return "mentions.CSV"
	case TableGKG:
		return "gkg.csv"
	}
	return ""
}

// CleanName derives the clean-tier artifact name from a raw file name. The
// extension swap tracks the per-table casing of the publisher's suffixes.
func (t Table) CleanName(rawName string) string {
	if t == TableGKG {
		return strings.TrimSuffix(rawName, ".csv") + ".json"
	}
	return strings.TrimSuffix(rawName, ".CSV") + ".json"
}

// Collection returns the document-store collection the table loads into.
func (t Table) Collection() string {
	return "GDELT." + string(t)
}

// DatetimeColumn is the canonical timestamp column used for time-range
// queries over loaded records.
func (t Table) DatetimeColumn() string {
	switch t {
	case TableEvents:
		return "DATEADDED"
	case TableMentions:
		return "MentionTimeDate"
	case TableGKG:
		return "V21DATE"
	}
	return ""
}

// OriginalColumns is the publisher's full column layout for the table's raw
// TSV files, in file order. Raw files carry no header row; this layout is the
// header.
func (t Table) OriginalColumns() []string {
	switch t {
	case TableEvents:
		return eventsOriginalColumns
	case TableMentions:
		return mentionsOriginalColumns
	case TableGKG:
		return gkgOriginalColumns
	}
	return nil
}

// ReducedColumns is the canonical (kept) column set after normalization.
func (t Table) ReducedColumns() []string {
	switch t {
	case TableEvents:
		return eventsReducedColumns
	case TableMentions:
		return mentionsReducedColumns
	case TableGKG:
		return gkgReducedColumns
	}
	return nil
}

var eventsOriginalColumns = []string{
	"GLOBALEVENTID",
	"Day",
	"MonthYear",
	"Year",
	"FractionDate",
	"Actor1Code",
	"Actor1Name",
	"Actor1CountryCode",
	"Actor1KnownGroupCode",
	"Actor1EthnicCode",
	"Actor1Religion1Code",
	"Actor1Religion2Code",
	"Actor1Type1Code",
	"Actor1Type2Code",
	"Actor1Type3Code",
	"Actor2Code",
	"Actor2Name",
	"Actor2CountryCode",
	"Actor2KnownGroupCode",
	"Actor2EthnicCode",
	"Actor2Religion1Code",
	"Actor2Religion2Code",
	"Actor2Type1Code",
	"Actor2Type2Code",
	"Actor2Type3Code",
	"IsRootEvent",
	"EventCode",
	"EventBaseCode",
	"EventRootCode",
	"QuadClass",
	"GoldsteinScale",
	"NumMentions",
	"NumSources",
	"NumArticles",
	"AvgTone",
	"Actor1Geo_Type",
	"Actor1Geo_FullName",
	"Actor1Geo_CountryCode",
	"Actor1Geo_ADM1Code",
	"Actor1Geo_ADM2Code",
	"Actor1Geo_Lat",
	"Actor1Geo_Long",
	"Actor1Geo_FeatureID",
	"Actor2Geo_Type",
	"Actor2Geo_FullName",
	"Actor2Geo_CountryCode",
	"Actor2Geo_ADM1Code",
	"Actor2Geo_ADM2Code",
	"Actor2Geo_Lat",
	"Actor2Geo_Long",
	"Actor2Geo_FeatureID",
	"ActionGeo_Type",
	"ActionGeo_FullName",
	"ActionGeo_CountryCode",
	"ActionGeo_ADM1Code",
	"ActionGeo_ADM2Code",
	"ActionGeo_Lat",
	"ActionGeo_Long",
	"ActionGeo_FeatureID",
	"DATEADDED",
	"SOURCEURL",
}

var eventsReducedColumns = []string{
	"GLOBALEVENTID",
	"Actor1Code",
	"Actor1Name",
	"Actor1CountryCode",
	"Actor1Type1Code",
	"Actor1Type2Code",
	"Actor1Type3Code",
	"Actor2Code",
	"Actor2Name",
	"Actor2CountryCode",
	"Actor2Type1Code",
	"Actor2Type2Code",
	"Actor2Type3Code",
	"IsRootEvent",
	"EventCode",
	"EventBaseCode",
	"EventRootCode",
	"QuadClass",
	"AvgTone",
	"Actor1Geo_Type",
	"Actor1Geo_FullName",
	"Actor1Geo_Lat",
	"Actor1Geo_Long",
	"Actor2Geo_Type",
	"Actor2Geo_FullName",
	"Actor2Geo_Lat",
	"Actor2Geo_Long",
	"ActionGeo_Type",
	"ActionGeo_FullName",
	"ActionGeo_Lat",
	"ActionGeo_Long",
	"DATEADDED",
	"SOURCEURL",
}

var mentionsOriginalColumns = []string{
	"GLOBALEVENTID",
	"EventTimeDate",
	"MentionTimeDate",
	"MentionType",
	"MentionSourceName",
	"MentionIdentifier",
	"SentenceID",
	"Actor1CharOffset",
	"Actor2CharOffset",
	"ActionCharOffset",
	"InRawText",
	"Confidence",
	"MentionDocLen",
	"MentionDocTone",
	"MentionDocTranslationInfo",
	"Extras",
}

var mentionsReducedColumns = []string{
	"GLOBALEVENTID",
	"EventTimeDate",
	"MentionTimeDate",
	"MentionType",
	"MentionSourceName",
	"MentionIdentifier",
	"InRawText",
	"Confidence",
	"MentionDocTone",
}

var gkgOriginalColumns = []string{
	"GKGRECORDID",
	"V21DATE",
	"V2SourceCollectionIdentifier",
	"V2SourceCommonName",
	"V2DocumentIdentifier",
	"V1Counts",
	"V21Counts",
	"V1Themes",
	"V2EnhancedThemes",
	"V1Locations",
	"V2EnhancedLocations",
	"V1Persons",
	"V2EnhancedPersons",
	"V1Organizations",
	"V2EnhancedOrganizations",
	"V15Tone",
	"V21EnhancedDates",
	"V2GCAM",
	"V21SharingImage",
	"V21RelatedImages",
	"V21SocialImageEmbeds",
	"V21SocialVideoEmbeds",
	"V21Quotations",
	"V21AllNames",
	"V21Amounts",
	"V21TranslationInfo",
	"V2ExtrasXML",
}

var gkgReducedColumns = []string{
	"GKGRECORDID",
	"V21DATE",
	"V2SourceCommonName",
	"V2DocumentIdentifier",
	"V1Counts",
	"V1Themes",
	"V1Locations",
	"V1Persons",
	"V1Organizations",
	"V15Tone",
}
