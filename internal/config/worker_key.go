package config

type WorkerKeyStruct struct {
	DraftCleanupQueue string
}

var WorkerKey = &WorkerKeyStruct{
	DraftCleanupQueue: "draft_cleanup_queue",
}
