package domain

type Stage string

const (
	StageNew               Stage = "new"
	StageDocumentsPending  Stage = "documents_pending"
	StageDocumentsReceived Stage = "documents_received"
	StageAIEvaluated       Stage = "ai_evaluated"
	StageScreening         Stage = "screening"
	StageApproved          Stage = "approved"
	StageLeaseSent         Stage = "lease_sent"
	StageLeaseSigned       Stage = "lease_signed"
)

// StagePipeline is the fixed application pipeline. Order is significant:
// it defines forward vs backward movement and the skip count for warnings.
var StagePipeline = []Stage{
	StageNew,
	StageDocumentsPending,
	StageDocumentsReceived,
	StageAIEvaluated,
	StageScreening,
	StageApproved,
	StageLeaseSent,
	StageLeaseSigned,
}

var stageIndex = buildStageIndex()

func buildStageIndex() map[Stage]int {
	m := make(map[Stage]int, len(StagePipeline))
	for i, s := range StagePipeline {
		m[s] = i
	}
	return m
}

// StageIndex returns the position of a stage in the pipeline.
// ok is false for values outside the closed enum.
func StageIndex(s Stage) (int, bool) {
	i, ok := stageIndex[s]
	return i, ok
}

func ValidStage(s Stage) bool {
	_, ok := stageIndex[s]
	return ok
}
