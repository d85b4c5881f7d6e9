package model

type RoomType string

const (
	RoomTypeConsultation   RoomType = "consultation"
	RoomTypeMinorProcedure RoomType = "minor_procedure"
	RoomTypeExam           RoomType = "exam"
	RoomTypeRecovery       RoomType = "recovery"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeConsultation, RoomTypeMinorProcedure, RoomTypeExam, RoomTypeRecovery:
		return true
	}
	return false
}

type Room struct {
	Base
	Name string   `db:"name" json:"name"`
	Type RoomType `db:"room_type" json:"room_type"`
}

type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Type string `json:"room_type" validate:"required,roomtype"`
}
