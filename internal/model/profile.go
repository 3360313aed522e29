package model

// UserProfile 是用户自己的命主档案。
type UserProfile struct {
	Name       string       `json:"name"`
	Gender     string       `json:"gender"` // male / female
	BirthDate  int64        `json:"birthDate,omitempty"` // Unix 毫秒，0 表示未设置
	BirthChart *QimenReport `json:"birthChart,omitempty"`
}

// PersonProfile 是用户保存的他人档案（亲友、客户等）。
type PersonProfile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Gender       string       `json:"gender"`
	BirthDate    int64        `json:"birthDate,omitempty"`
	BirthChart   *QimenReport `json:"birthChart,omitempty"`
	Relationship string       `json:"relationship,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    int64        `json:"createdAt"`
	UpdatedAt    int64        `json:"updatedAt"`
}
