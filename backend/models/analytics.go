package models

type InstructorRevenue struct {
	InstructorID    uint    `json:"instructor_id"`
	InstructorName  string  `json:"instructor_name"`
	Payments        int64   `json:"payments"`
	Gross           float64 `json:"gross"`
	AdminShare      float64 `json:"admin_share"`
	InstructorShare float64 `json:"instructor_share"`
}

type RevenueReport struct {
	FeePercent      float64             `json:"fee_percent"`
	Payments        int64               `json:"payments"`
	Gross           float64             `json:"gross"`
	AdminShare      float64             `json:"admin_share"`
	InstructorShare float64             `json:"instructor_share"`
	ByInstructor    []InstructorRevenue `json:"by_instructor"`
}

type CourseSummary struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	SubTitle    string  `json:"sub_title,omitempty"`
	IsPaid      bool    `json:"is_paid"`
	Price       float64 `json:"price"`
	IsPublished bool    `json:"is_published"`
	CategoryID  uint    `json:"category_id"`
	Videos      int64   `json:"videos"`
}

// AllModels is the AutoMigrate set.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Course{},
		&Video{},
		&VideoProgress{},
		&Enrollment{},
		&Payment{},
		&Rating{},
	}
}
