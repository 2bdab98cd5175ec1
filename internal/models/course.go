package models

// Course is a Moodle course as listed by the backend.
type Course struct {
	ID                int64  `json:"id"`
	Fullname          string `json:"fullname"`
	Shortname         string `json:"shortname"`
	CategoryID        int64  `json:"categoryid"`
	Summary           string `json:"summary,omitempty"`
	SummaryFormat     *int   `json:"summaryformat,omitempty"`
	Format            string `json:"format,omitempty"`
	ShowGrades        *bool  `json:"showgrades,omitempty"`
	NewsItems         *int   `json:"newsitems,omitempty"`
	StartDate         *int64 `json:"startdate,omitempty"`
	EndDate           *int64 `json:"enddate,omitempty"`
	MaxBytes          *int64 `json:"maxbytes,omitempty"`
	ShowReports       *bool  `json:"showreports,omitempty"`
	Visible           *bool  `json:"visible,omitempty"`
	GroupMode         *int   `json:"groupmode,omitempty"`
	GroupModeForce    *int   `json:"groupmodeforce,omitempty"`
	DefaultGroupingID *int64 `json:"defaultgroupingid,omitempty"`
}

// IsVisible treats an unspecified visibility as visible.
func (c *Course) IsVisible() bool {
	return c.Visible == nil || *c.Visible
}

// CourseContent is one section of a course.
type CourseContent struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Visible             *bool          `json:"visible,omitempty"`
	Summary             string         `json:"summary,omitempty"`
	SummaryFormat       *int           `json:"summaryformat,omitempty"`
	Section             *int           `json:"section,omitempty"`
	HiddenByNumSections *int           `json:"hiddenbynumsections,omitempty"`
	UserVisible         *bool          `json:"uservisible,omitempty"`
	Modules             []CourseModule `json:"modules,omitempty"`
}

// CourseModule is an activity or resource inside a section.
type CourseModule struct {
	ID                  int64                  `json:"id"`
	URL                 string                 `json:"url,omitempty"`
	Name                string                 `json:"name"`
	Instance            *int64                 `json:"instance,omitempty"`
	Description         string                 `json:"description,omitempty"`
	Visible             *int                   `json:"visible,omitempty"`
	UserVisible         *bool                  `json:"uservisible,omitempty"`
	AvailabilityInfo    string                 `json:"availabilityinfo,omitempty"`
	VisibleOnCoursePage *int                   `json:"visibleoncoursepage,omitempty"`
	ModIcon             string                 `json:"modicon,omitempty"`
	ModName             string                 `json:"modname,omitempty"`
	ModPlural           string                 `json:"modplural,omitempty"`
	Availability        string                 `json:"availability,omitempty"`
	Indent              *int                   `json:"indent,omitempty"`
	OnClick             string                 `json:"onclick,omitempty"`
	AfterLink           string                 `json:"afterlink,omitempty"`
	CustomData          string                 `json:"customdata,omitempty"`
	NoViewLink          *bool                  `json:"noviewlink,omitempty"`
	Completion          *int                   `json:"completion,omitempty"`
	CompletionData      map[string]interface{} `json:"completiondata,omitempty"`
	Contents            []FileContent          `json:"contents,omitempty"`
}

// FileContent is a file attached to a module.
type FileContent struct {
	Type         string `json:"type"`
	Filename     string `json:"filename"`
	Filepath     string `json:"filepath,omitempty"`
	Filesize     int64  `json:"filesize,omitempty"`
	FileURL      string `json:"fileurl,omitempty"`
	TimeCreated  *int64 `json:"timecreated,omitempty"`
	TimeModified *int64 `json:"timemodified,omitempty"`
	SortOrder    *int   `json:"sortorder,omitempty"`
	UserID       *int64 `json:"userid,omitempty"`
	Author       string `json:"author,omitempty"`
	License      string `json:"license,omitempty"`
}

// FileInfo is one entry of a course file listing.
type FileInfo struct {
	Filename    string `json:"filename"`
	FileURL     string `json:"fileurl"`
	Filesize    int64  `json:"filesize"`
	MimeType    string `json:"mimetype,omitempty"`
	ModuleName  string `json:"module_name"`
	SectionName string `json:"section_name"`
}

// DownloadInfo is the body of GET /api/courses/{id}/download.
type DownloadInfo struct {
	CourseID   int64      `json:"course_id"`
	FilesCount int        `json:"files_count"`
	Files      []FileInfo `json:"files"`
	Message    string     `json:"message,omitempty"`
}
