//go:build system

package system_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"rental-ops/internal/domain"
	"rental-ops/internal/storage"
	appTemporal "rental-ops/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var api *apiClient

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()
		api = newAPIClient(cfg)

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker and event-handler) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())
	})

	It("walks an application through the gated pipeline with real services", func() {
		By("creating an application with a complete primary applicant")
		created, err := api.createApplication("prop-system-test", map[string]string{
			"full_name":         "Jane Renter",
			"email":             "jane.renter@example.com",
			"phone":             "+1-555-0147",
			"employment_status": "employed",
			"employer_name":     "Acme Corp",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(created.ApplicationID).ToNot(BeEmpty())
		Expect(created.Status).To(Equal(domain.StageNew))
		appID := created.ApplicationID

		By("refusing the first transition while a manual item is unchecked")
		blocked, err := api.commitTransition(appID, domain.StageDocumentsPending, 422)
		Expect(err).ToNot(HaveOccurred())
		Expect(blocked.Decision.Allowed).To(BeFalse())
		Expect(blocked.Decision.MissingRequiredItemIDs).To(ContainElement(domain.ItemApplicationReviewed))

		By("acknowledging the manual item and committing the transition")
		Expect(api.toggleItem(appID, domain.ItemApplicationReviewed, true)).To(Succeed())
		committed, err := api.commitTransition(appID, domain.StageDocumentsPending, 200)
		Expect(err).ToNot(HaveOccurred())
		Expect(committed.Committed).To(BeTrue())

		By("uploading the required documents exactly like an applicant")
		uploads := map[domain.DocType]uploadResponse{}
		for docType, fixture := range map[domain.DocType]string{
			domain.DocTypeGovernmentID:  "testdata/government_id.txt",
			domain.DocTypePaystub:       "testdata/paystub.txt",
			domain.DocTypeBankStatement: "testdata/bank_statement.txt",
		} {
			upload, uploadErr := api.uploadDocument(appID, docType, filepath.Join(repoRoot, fixture))
			Expect(uploadErr).ToNot(HaveOccurred())
			Expect(upload.DocumentID).ToNot(BeEmpty())
			Expect(upload.Status).To(Equal(domain.VerificationPending))
			uploads[docType] = upload
		}

		By("waiting for the event-handler to register the uploads from bucket notifications")
		Eventually(func() bool {
			checklist, listErr := api.getChecklist(appID)
			Expect(listErr).ToNot(HaveOccurred())
			for _, item := range checklist.Items {
				if item.ID == domain.ItemRequiredDocsUploaded {
					return item.Checked
				}
			}
			return false
		}, cfg.DocumentRegisterTimeout, cfg.WorkflowPollInterval).Should(BeTrue())

		By("moving to documents_received once documents are requested and uploaded")
		Expect(api.toggleItem(appID, domain.ItemDocumentsRequested, true)).To(Succeed())
		committed, err = api.commitTransition(appID, domain.StageDocumentsReceived, 200)
		Expect(err).ToNot(HaveOccurred())
		Expect(committed.Committed).To(BeTrue())

		By("verifying each uploaded document")
		for _, upload := range uploads {
			Expect(api.setVerification(upload.DocumentID, domain.VerificationVerified)).To(Succeed())
		}

		By("warning about skipped stages on a preview without blocking it")
		preview, err := api.previewTransition(appID, domain.StageApproved)
		Expect(err).ToNot(HaveOccurred())
		Expect(preview.Warnings).To(ContainElement(ContainSubstring("skips")))

		By("moving to ai_evaluated")
		committed, err = api.commitTransition(appID, domain.StageAIEvaluated, 200)
		Expect(err).ToNot(HaveOccurred())
		Expect(committed.Committed).To(BeTrue())

		By("starting the screening workflow over HTTP")
		screening, err := api.startScreening(appID)
		Expect(err).ToNot(HaveOccurred())
		Expect(screening.WorkflowID).ToNot(BeEmpty())

		By("waiting for the aggregate score to be persisted by a real worker")
		var score float64
		Eventually(func() bool {
			app, getErr := api.getApplication(appID)
			Expect(getErr).ToNot(HaveOccurred())
			raw, ok := app["ai_score"]
			if !ok || raw == nil {
				return false
			}
			score, ok = raw.(float64)
			return ok
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(BeTrue())

		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		if score < domain.AIScoreThreshold {
			By("resolving the queued manual review so the workflow can finish")
			Expect(api.submitScreeningReview(appID, domain.ScreeningReviewAccept)).To(Succeed())
		}

		By("waiting for the workflow to complete")
		Eventually(func() enumspb.WorkflowExecutionStatus {
			desc, descErr := temporalClient.DescribeWorkflowExecution(context.Background(), screening.WorkflowID, "")
			Expect(descErr).ToNot(HaveOccurred())
			return desc.GetWorkflowExecutionInfo().GetStatus()
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED))

		By("validating activity inputs and ordering from Temporal workflow history")
		trace, err := collectActivityTrace(context.Background(), temporalClient, screening.WorkflowID)
		Expect(err).ToNot(HaveOccurred())

		Expect(trace.ScheduledOrder[0]).To(Equal("LoadApplicantsActivity"))
		Expect(trace.ScheduledOrder[1]).To(Equal("ScoreApplicantActivity"))
		Expect(trace.ScheduledOrder).To(ContainElement("PersistAggregateScoreActivity"))
		Expect(trace.CompletedOrder).To(ContainElement("PersistAggregateScoreActivity"))

		loadIn := trace.Inputs["LoadApplicantsActivity"].(appTemporal.LoadApplicantsInput)
		Expect(loadIn.ApplicationID).To(Equal(appID))

		scoreIn := trace.Inputs["ScoreApplicantActivity"].(appTemporal.ScoreApplicantInput)
		Expect(scoreIn.ApplicationID).To(Equal(appID))
		Expect(scoreIn.Applicant.ID).To(Equal(created.ApplicantID))

		scoreOut := trace.Outputs["ScoreApplicantActivity"].(appTemporal.ScoreApplicantOutput)
		Expect(scoreOut.Score).To(BeNumerically(">=", 0))
		Expect(scoreOut.Score).To(BeNumerically("<=", 100))

		By("verifying gate, audit and model output records in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()
		Expect(db.Ping()).To(Succeed())

		auditStates, err := fetchStringRows(db, `SELECT state FROM audit_log WHERE application_id = $1 ORDER BY id`, appID)
		Expect(err).ToNot(HaveOccurred())
		Expect(auditStates).To(ContainElement("CREATED"))
		Expect(auditStates).To(ContainElement("DOCUMENT_UPLOADED"))
		Expect(auditStates).To(ContainElement("DOCUMENT_VERIFIED"))
		Expect(auditStates).To(ContainElement("STAGE_CHANGED"))
		Expect(auditStates).To(ContainElement("SCORED"))

		phases, err := fetchStringRows(db, `SELECT phase FROM screening_attempts WHERE application_id = $1 ORDER BY id`, appID)
		Expect(err).ToNot(HaveOccurred())
		Expect(phases).ToNot(BeEmpty())
		Expect(phases[0]).To(Equal("SCREEN_ATTEMPT_1"))

		transitions, err := fetchStringRows(db, `SELECT to_stage FROM stage_transitions WHERE application_id = $1 ORDER BY id`, appID)
		Expect(err).ToNot(HaveOccurred())
		Expect(transitions).To(Equal([]string{"documents_pending", "documents_received", "ai_evaluated"}))

		By("counting applications through the storage layer")
		store, err := storage.NewPostgresStore(cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer store.Close()
		count, err := store.CountApplications(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(BeNumerically(">=", 1))

		By("checking the stage checklist is served with merged manual state")
		checklist, err := api.getChecklist(appID)
		Expect(err).ToNot(HaveOccurred())
		Expect(checklist.Stage).To(Equal(domain.StageAIEvaluated))
		payload, err := json.Marshal(checklist.Items)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(payload)).To(ContainSubstring(domain.ItemAIScorePresent))
	})
})
