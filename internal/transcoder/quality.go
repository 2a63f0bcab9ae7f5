package transcoder

// Features is the technical snapshot extracted from an audio stream.
type Features struct {
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Bitrate    int     `json:"bitrate"`
	SizeBytes  int     `json:"sizeBytes"`
}

// Quality is the heuristic fitness rating of a clip for speech recognition.
type Quality struct {
	QualityScore    int      `json:"qualityScore"`
	SampleRate      int      `json:"sampleRate"`
	Channels        int      `json:"channels"`
	Bitrate         int      `json:"bitrate"`
	IsHighQuality   bool     `json:"isHighQuality"`
	Recommendations []string `json:"recommendations"`
}

// highQualityThreshold is the score at or above which a clip counts as
// high quality.
const highQualityThreshold = 80

// QualityFromFeatures rates audio fitness on a 0-100 scale. Penalties:
// sample rate below 16/22.05/44.1 kHz costs 30/20/10; mono costs 5 and more
// than two channels costs 10; bitrate below 64/128/192 kbps costs 40/20/10.
func QualityFromFeatures(f Features) Quality {
	score := 100

	switch {
	case f.SampleRate < 16000:
		score -= 30
	case f.SampleRate < 22050:
		score -= 20
	case f.SampleRate < 44100:
		score -= 10
	}

	switch {
	case f.Channels == 1:
		score -= 5
	case f.Channels > 2:
		score -= 10
	}

	switch {
	case f.Bitrate < 64000:
		score -= 40
	case f.Bitrate < 128000:
		score -= 20
	case f.Bitrate < 192000:
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Quality{
		QualityScore:    score,
		SampleRate:      f.SampleRate,
		Channels:        f.Channels,
		Bitrate:         f.Bitrate,
		IsHighQuality:   score >= highQualityThreshold,
		Recommendations: qualityRecommendations(score, f),
	}
}

func qualityRecommendations(score int, f Features) []string {
	var recs []string

	if score < 60 {
		recs = append(recs, "Low audio quality detected. Consider increasing sample rate and bitrate.")
	}
	if f.SampleRate < 16000 {
		recs = append(recs, "Increase sample rate to at least 16kHz for better quality.")
	}
	if f.Bitrate < 128000 {
		recs = append(recs, "Increase bitrate to at least 128kbps for better quality.")
	}
	if f.Channels == 1 {
		recs = append(recs, "Consider using stereo audio for better quality (if applicable).")
	}

	return recs
}
