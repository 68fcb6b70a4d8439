package roomhandler

type CreateRoomBody struct {
	Name            string `json:"name"             binding:"required,max=120"   example:"Morning calm"`
	CreatorID       string `json:"creator_id"       binding:"required"           example:"user123"`
	DurationMinutes int    `json:"duration_minutes" binding:"gte=0,lte=1440"     example:"20"`
	Goal            string `json:"goal"             binding:"omitempty,max=280"  example:"focus"`
	PlaylistID      string `json:"playlist_id"      binding:"omitempty,max=128"`
	PlaylistName    string `json:"playlist_name"    binding:"omitempty,max=200"`
	IsPublic        *bool  `json:"is_public"`
}

type MembershipBody struct {
	UserID string `json:"user_id" binding:"required" example:"user123"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

type ListRoomsQuery struct {
	Public bool `form:"public"`
	Limit  int  `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int  `form:"offset,default=0"  binding:"gte=0"`
}
