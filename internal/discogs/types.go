package discogs

// Pagination is the paging envelope returned by list endpoints.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
	URLs    struct {
		Next string `json:"next"`
		Last string `json:"last"`
	} `json:"urls"`
}

// CollectionPage is one page of the collection folder listing.
type CollectionPage struct {
	Pagination Pagination `json:"pagination"`
	Releases   []Release  `json:"releases"`
}

// Release is one collection instance as returned by the API.
type Release struct {
	ID               int              `json:"id"`
	InstanceID       int64            `json:"instance_id"`
	DateAdded        string           `json:"date_added"`
	Rating           int              `json:"rating"`
	FolderID         int              `json:"folder_id"`
	BasicInformation BasicInformation `json:"basic_information"`
	Notes            []Note           `json:"notes"`
}

type BasicInformation struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Thumb      string   `json:"thumb"`
	CoverImage string   `json:"cover_image"`
	Formats    []Format `json:"formats"`
	Artists    []Artist `json:"artists"`
	Genres     []string `json:"genres"`
	Styles     []string `json:"styles"`
}

type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
}

type Artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Join string `json:"join"`
	ANV  string `json:"anv"`
}

// Note is a custom collection field value.
type Note struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

// CollectionValue carries locale formatted currency strings.
type CollectionValue struct {
	Minimum string `json:"minimum"`
	Median  string `json:"median"`
	Maximum string `json:"maximum"`
}

// PriceSuggestion is the suggested price for one condition grade.
type PriceSuggestion struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}
