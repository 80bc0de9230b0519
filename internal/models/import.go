package models

// ImportResult summarises a CSV upload.
type ImportResult struct {
	Message string   `json:"message"`
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// TemplateField documents one CSV column.
type TemplateField struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// CSVTemplate is a sample file with column documentation.
type CSVTemplate struct {
	Template string          `json:"template"`
	Fields   []TemplateField `json:"fields"`
}

// WorkbookImportResult summarises a class and fee workbook upload.
type WorkbookImportResult struct {
	Message        string   `json:"message"`
	ClassesCreated int      `json:"classes_created"`
	FeesSaved      int      `json:"fees_saved"`
	Errors         []string `json:"errors"`
}
