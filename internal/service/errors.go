package service

import "errors"

var (
	// ErrMissingCredential indicates no API credential resolved for a real evaluation.
	ErrMissingCredential = errors.New("no evaluation API credential configured")
	// ErrOriginalFileMissing indicates the upload behind an evaluation is gone or has no resident bytes.
	ErrOriginalFileMissing = errors.New("original file for evaluation is no longer available")
	// ErrSubmissionInProgress indicates the file is already being evaluated.
	ErrSubmissionInProgress = errors.New("submission already in progress for this file")
	// ErrRubricNotFound indicates the rubric does not exist.
	ErrRubricNotFound = errors.New("rubric not found")
	// ErrCriterionNotFound indicates the criterion does not belong to the rubric.
	ErrCriterionNotFound = errors.New("criterion not found")
	// ErrEvaluationNotFound indicates the evaluation is not part of the session history.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrUploadNotFound indicates the upload is not part of the session history.
	ErrUploadNotFound = errors.New("upload not found")
	// ErrStorageUnavailable indicates a durable write could not be completed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
