package queue

import "encoding/json"

// Job is the payload staged for the delivery worker. It carries everything
// needed to send, so the worker only has to consult the store for existence
// and status. Attempt counts retries already performed for this job.
type Job struct {
	EmailID     int    `json:"email_id"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	UserID      int    `json:"user_id"`
	SenderLabel string `json:"sender_label"`
	Attempt     int    `json:"attempt"`
}

func encodeJob(job Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJob(member string) (Job, error) {
	var job Job
	err := json.Unmarshal([]byte(member), &job)
	return job, err
}

// matchesEmailID reports whether a raw queue member belongs to the given
// email. Malformed members never match.
func matchesEmailID(member string, emailID int) bool {
	job, err := decodeJob(member)
	if err != nil {
		return false
	}
	return job.EmailID == emailID
}
