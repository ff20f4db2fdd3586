package common

import "github.com/google/uuid"

type UUID string

func NewUUID() UUID {
	return UUID(uuid.NewString())
}

func ParseUUID(value string) (UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", err
	}
	return UUID(parsed.String()), nil
}

func (id UUID) String() string {
	return string(id)
}

func (id UUID) IsZero() bool {
	return id == ""
}

func UUIDStrings(ids []UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
