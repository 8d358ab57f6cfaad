package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SubmitLockKey returns the key guarding submission processing for one student and exam.
func (r *CacheKeyStruct) SubmitLockKey(examID string, studentID int) string {
	return fmt.Sprintf("lock:submit:student:%d:exam:%s", studentID, examID)
}

// StudentExamSessionStartKey returns the cache key for a student's exam session start
func (r *CacheKeyStruct) StudentExamSessionStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:session_start", studentID, examID)
}

// StudentDraftKey returns the cache key for a student's autosaved answer sheet
func (r *CacheKeyStruct) StudentDraftKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:draft", studentID, examID)
}

// ExamDefinitionKey returns the cache key for an exam definition
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ExamSubmissionsChannel returns the Redis PubSub channel carrying submission events for an exam
func (r *CacheKeyStruct) ExamSubmissionsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:submissions", examID)
}

var CacheKey = NewCacheKeyStruct()
