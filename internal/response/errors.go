package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrNotRegistered     ErrCode = "NOT_REGISTERED"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrSessionActive     ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrExamNotActive     ErrCode = "EXAM_NOT_ACTIVE"
	ErrExamNotOpen       ErrCode = "EXAM_NOT_OPEN"
	ErrQuestionRange     ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrInvalidOption     ErrCode = "INVALID_OPTION"
	ErrSubmissionFailed  ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrUnknownAction:
		return "Aksi tidak dikenal."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrNotRegistered:
		return "Anda tidak terdaftar atau tidak diizinkan mengikuti ujian ini."
	case ErrAlreadySubmitted:
		return "Ujian ini sudah dikumpulkan."
	case ErrSessionActive:
		return "Ujian ini sedang dibuka di jendela lain."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrExamNotActive:
		return "Ujian belum dimulai atau sudah berakhir."
	case ErrExamNotOpen:
		return "Ujian belum dibuka. Tunggu hingga waktu mulai."
	case ErrQuestionRange:
		return "Soal tidak ditemukan."
	case ErrInvalidOption:
		return "Pilihan jawaban tidak valid."
	case ErrSubmissionFailed:
		return "Jawaban gagal dikirim. Hubungi pengawas ujian."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
