package domain

type Lesson struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	AudioURL    string `json:"audioUrl" validate:"required,url"`
	PDFURL      string `json:"pdfUrl,omitempty" validate:"omitempty,url"`
	Category    string `json:"category"`
	Level       string `json:"level"`
	Duration    string `json:"duration"`
	UploadDate  string `json:"uploadDate"`
	IsFree      bool   `json:"isFree,omitempty"`
}

const sampleHandout = "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf"

// DefaultLessons is the catalog seeded when storage holds no lessons yet.
func DefaultLessons() []Lesson {
	return []Lesson{
		{
			ID:          "1",
			Title:       "أساسيات المقامات العراقية - مقام الرست (مجاني)",
			Description: "شرح مفصل لمقام الرست وكيفية أدائه باللهجة العراقية الأصيلة، مع التطبيق العملي على قصائد تراثية. هذا الدرس متاح للجميع مجاناً.",
			AudioURL:    "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
			PDFURL:      sampleHandout,
			Category:    "المقامات",
			Level:       "مبتدئ",
			Duration:    "15:30",
			UploadDate:  "2024-03-01",
			IsFree:      true,
		},
		{
			ID:          "2",
			Title:       "تطوير النفس والتحكم بالصوت",
			Description: "تمارين يومية للمنشدين والقراء لزيادة مساحة النفس والتحكم في طبقات الصوت العالية والمنخفضة.",
			AudioURL:    "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3",
			PDFURL:      sampleHandout,
			Category:    "تمارين صوتية",
			Level:       "متوسط",
			Duration:    "12:45",
			UploadDate:  "2024-03-05",
		},
		{
			ID:          "3",
			Title:       "مقام البيات وكيفية الانتقال منه",
			Description: "درس متقدم حول مقام البيات العراقي والتحويلات المقامية الشائعة التي تستخدم في الأبوذية والمنقبة.",
			AudioURL:    "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3",
			Category:    "المقامات",
			Level:       "متقدم",
			Duration:    "20:10",
			UploadDate:  "2024-03-10",
		},
	}
}
