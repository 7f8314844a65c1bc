// pkg/plan/plan.go - declarative install/removal tables for the AutoCAD 2020 deployment.
//
// Everything the sequencer executes is data here: which MSI product codes get
// removed for each product-year bucket, in which order, and which setup
// invocation performs the new install. Enabling an alternate product line is a
// flag flip on its entry, not a code change.

package plan

import (
	"sort"

	goversion "github.com/hashicorp/go-version"
)

// AppInfo is static application metadata used for log and dialog text only.
type AppInfo struct {
	Vendor       string
	Name         string
	Version      string
	Architecture string
	Language     string
	Revision     string
}

// Application returns the descriptor for the product this deployment ships.
func Application() AppInfo {
	return AppInfo{
		Vendor:       "Autodesk",
		Name:         "AutoCAD 2020",
		Version:      "24.0",
		Architecture: "x64",
		Language:     "EN",
		Revision:     "01",
	}
}

// BucketID names one previously-installed product-year line.
type BucketID string

const (
	Bucket2019   BucketID = "acad2019"
	Bucket2018   BucketID = "acad2018"
	BucketActive BucketID = "acad2020"
)

// RemovalEntry addresses one installed package for removal by product code.
type RemovalEntry struct {
	ProductCode string
	DisplayName string
	Enabled     bool
}

// Bucket groups the removal entries for one product-year line. MarkerPath is
// the fixed executable whose presence activates the bucket; order of Entries
// is significant and follows the vendor's uninstall sequence for that year.
type Bucket struct {
	ID         BucketID
	Version    string
	MarkerPath string
	Entries    []RemovalEntry
}

// ActiveEntries returns the entries that are enabled, preserving order.
func (b Bucket) ActiveEntries() []RemovalEntry {
	out := make([]RemovalEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// InstallOperation describes one setup invocation for the Installation phase.
// Transform and Patches are optional per-site customizations applied to the
// vendor image.
type InstallOperation struct {
	Name        string
	PackagePath string
	Args        []string
	Visible     bool
	ZeroConfig  bool
	Transform   string
	Patches     []string
	Enabled     bool
}

// The 2019 line removes the main product and its add-ons ahead of the private
// and content packages. The 2018 line interleaves them differently; both
// orders are copied from the vendor's uninstall sequence for that year and
// must not be normalized.
var legacyBuckets = []Bucket{
	{
		ID:         Bucket2019,
		Version:    "23.0",
		MarkerPath: `Autodesk\AutoCAD 2019\acad.exe`,
		Entries: []RemovalEntry{
			{ProductCode: "{28B89EEF-0001-0409-2102-CF3F3A09B77D}", DisplayName: "AutoCAD 2019", Enabled: true},
			{ProductCode: "{28B89EEF-0001-0409-1102-CF3F3A09B77D}", DisplayName: "AutoCAD 2019 Language Pack - English", Enabled: true},
			{ProductCode: "{28B89EEF-0004-0000-3102-CF3F3A09B77D}", DisplayName: "ACA & MEP 2019 Object Enabler", Enabled: true},
			{ProductCode: "{28B89EEF-0001-0409-3102-CF3F3A09B77D}", DisplayName: "ACAD Private 2019", Enabled: true},
			{ProductCode: "{8DA60AF6-CD55-42B5-ADA6-B71F28175783}", DisplayName: "Autodesk Save to Web and Mobile", Enabled: true},
			{ProductCode: "{478AFB97-6F50-4DD4-8B4A-31A5A6DD6D6F}", DisplayName: "Autodesk Desktop App", Enabled: false},
		},
	},
	{
		ID:         Bucket2018,
		Version:    "22.0",
		MarkerPath: `Autodesk\AutoCAD 2018\acad.exe`,
		Entries: []RemovalEntry{
			{ProductCode: "{28B89EEF-7001-0409-1102-CF3F3A09B77D}", DisplayName: "AutoCAD 2018 Language Pack - English", Enabled: true},
			{ProductCode: "{28B89EEF-7001-0409-3102-CF3F3A09B77D}", DisplayName: "ACAD Private 2018", Enabled: true},
			{ProductCode: "{28B89EEF-7001-0409-2102-CF3F3A09B77D}", DisplayName: "AutoCAD 2018", Enabled: true},
			{ProductCode: "{28B89EEF-7004-0000-3102-CF3F3A09B77D}", DisplayName: "ACA & MEP 2018 Object Enabler", Enabled: true},
			{ProductCode: "{E57B5BE1-6D6E-47A3-A688-07F1B76C549B}", DisplayName: "A360 Desktop", Enabled: false},
		},
	},
}

// currentBucket lists this deployment's own components, removed during an
// Uninstall run. Order follows the vendor uninstall sequence for 2020.
var currentBucket = Bucket{
	ID:      BucketActive,
	Version: "24.0",
	Entries: []RemovalEntry{
		{ProductCode: "{28B89EEF-0028-0409-2102-CF3F3A09B77D}", DisplayName: "AutoCAD 2020", Enabled: true},
		{ProductCode: "{28B89EEF-0028-0409-1102-CF3F3A09B77D}", DisplayName: "AutoCAD 2020 Language Pack - English", Enabled: true},
		{ProductCode: "{28B89EEF-0028-0409-3102-CF3F3A09B77D}", DisplayName: "ACAD Private 2020", Enabled: true},
		{ProductCode: "{28B89EEF-002C-0000-3102-CF3F3A09B77D}", DisplayName: "ACA & MEP 2020 Object Enabler", Enabled: true},
		{ProductCode: "{8F69EE2C-DC34-4746-9B47-7511147BD4B0}", DisplayName: "Autodesk Material Library 2020", Enabled: true},
		{ProductCode: "{3AAA4C1B-51DA-487D-81A3-4234DBB9A8F9}", DisplayName: "Autodesk Material Library Base Resolution Image Library 2020", Enabled: true},
		{ProductCode: "{EDC45307-9B38-4A15-9E47-07AC0064B4E1}", DisplayName: "Autodesk Advanced Material Library Image Library 2020", Enabled: true},
		{ProductCode: "{8DA60AF6-CD55-42B5-ADA6-B71F28175783}", DisplayName: "Autodesk Save to Web and Mobile", Enabled: true},
		{ProductCode: "{878D403E-952B-4722-9966-2B7F2B8B259A}", DisplayName: "Autodesk Single Sign On Component", Enabled: true},
		{ProductCode: "{9ED7F3DB-2045-4B1E-ABB8-D94B3AE21A53}", DisplayName: "Autodesk License Service (x64)", Enabled: true},
	},
}

// installOperations lists every product line this payload can install. Only
// one is enabled per deployment; the alternates stay as data instead of being
// deleted so enabling another line is a configuration change.
var installOperations = []InstallOperation{
	{
		Name:        "AutoCAD 2020",
		PackagePath: `Img\Setup.exe`,
		Args:        []string{"/W", "/Q", "/I", `Img\AutoCAD2020.ini`, "/language", "en-us"},
		Visible:     false,
		Enabled:     true,
	},
	{
		Name:        "AutoCAD Architecture 2020",
		PackagePath: `Img\Setup.exe`,
		Args:        []string{"/W", "/Q", "/I", `Img\ACA2020.ini`, "/language", "en-us"},
		Visible:     false,
		Enabled:     false,
	},
	{
		Name:        "Civil 3D 2020",
		PackagePath: `Img\Setup.exe`,
		Args:        []string{"/W", "/Q", "/I", `Img\Civil3D2020.ini`, "/language", "en-us"},
		Visible:     false,
		Enabled:     false,
	},
}

// LegacyBuckets returns the legacy product-year buckets ordered newest first.
func LegacyBuckets() []Bucket {
	out := make([]Bucket, len(legacyBuckets))
	copy(out, legacyBuckets)
	sort.SliceStable(out, func(i, j int) bool {
		vi, erri := goversion.NewVersion(out[i].Version)
		vj, errj := goversion.NewVersion(out[j].Version)
		if erri != nil || errj != nil {
			return out[i].Version > out[j].Version
		}
		return vi.GreaterThan(vj)
	})
	return out
}

// BucketByID looks up a legacy bucket.
func BucketByID(id BucketID) (Bucket, bool) {
	for _, b := range legacyBuckets {
		if b.ID == id {
			return b, true
		}
	}
	return Bucket{}, false
}

// CurrentRemovals returns the removal sequence for this deployment's own
// components.
func CurrentRemovals() Bucket {
	return currentBucket
}

// InstallOperations returns every declared install operation, including
// disabled alternates.
func InstallOperations() []InstallOperation {
	out := make([]InstallOperation, len(installOperations))
	copy(out, installOperations)
	return out
}

// ActiveInstall returns the single enabled install operation.
func ActiveInstall() (InstallOperation, bool) {
	for _, op := range installOperations {
		if op.Enabled {
			return op, true
		}
	}
	return InstallOperation{}, false
}
