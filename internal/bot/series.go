package bot

import "math"

// Нижняя граница стандартного отклонения: защищает z-score от деления
// на ноль на вырожденных (константных) сериях
const minStdDev = 1e-9

// Период полного пересчета инкрементальных сумм: накопленную ошибку
// округления float64 дешевле обнулить, чем оценивать
const recomputeEvery = 1024

// SpreadSeries - кольцевой буфер значений спреда со скользящей
// статистикой
//
// Push поддерживает сумму и сумму квадратов инкрементально, поэтому
// Mean/Std/Zscore выполняются за O(1) независимо от размера окна.
// Не потокобезопасен: каждая пара владеет своей серией, тики одной
// пары не перекрываются.
type SpreadSeries struct {
	buf  []float64
	head int // позиция следующей записи
	size int

	sum   float64
	sumSq float64

	pushes     int
	minPeriods int
}

// NewSpreadSeries создает серию с окном window и порогом готовности
// minPeriods (minPeriods <= window)
func NewSpreadSeries(window, minPeriods int) *SpreadSeries {
	if window < 2 {
		window = 2
	}
	if minPeriods < 2 {
		minPeriods = 2
	}
	if minPeriods > window {
		minPeriods = window
	}
	return &SpreadSeries{
		buf:        make([]float64, window),
		minPeriods: minPeriods,
	}
}

// Push добавляет значение, вытесняя старейшее при заполненном окне
func (s *SpreadSeries) Push(v float64) {
	if s.size == len(s.buf) {
		old := s.buf[s.head]
		s.sum -= old
		s.sumSq -= old * old
	} else {
		s.size++
	}

	s.buf[s.head] = v
	s.sum += v
	s.sumSq += v * v
	s.head = (s.head + 1) % len(s.buf)

	s.pushes++
	if s.pushes%recomputeEvery == 0 {
		s.recompute()
	}
}

// recompute восстанавливает суммы из буфера
func (s *SpreadSeries) recompute() {
	s.sum = 0
	s.sumSq = 0
	for i := 0; i < s.size; i++ {
		v := s.buf[(s.head-1-i+2*len(s.buf))%len(s.buf)]
		s.sum += v
		s.sumSq += v * v
	}
}

// Size возвращает текущее число наблюдений в окне
func (s *SpreadSeries) Size() int {
	return s.size
}

// Ready сообщает, достаточно ли наблюдений для z-score
func (s *SpreadSeries) Ready() bool {
	return s.size >= s.minPeriods
}

// Last возвращает последнее добавленное значение
func (s *SpreadSeries) Last() float64 {
	if s.size == 0 {
		return 0
	}
	return s.buf[(s.head-1+len(s.buf))%len(s.buf)]
}

// Mean возвращает среднее окна
func (s *SpreadSeries) Mean() float64 {
	if s.size == 0 {
		return 0
	}
	return s.sum / float64(s.size)
}

// Std возвращает стандартное отклонение окна, не ниже minStdDev
func (s *SpreadSeries) Std() float64 {
	if s.size == 0 {
		return minStdDev
	}
	mean := s.Mean()
	variance := s.sumSq/float64(s.size) - mean*mean
	if variance < 0 {
		// Отрицательный хвост ошибки округления
		variance = 0
	}
	std := math.Sqrt(variance)
	if std < minStdDev {
		return minStdDev
	}
	return std
}

// Zscore возвращает (last - mean) / std
//
// До прогрева окна z-score не определен: возвращается
// ErrSeriesNotReady, вызывающая сторона обязана трактовать это как Hold.
func (s *SpreadSeries) Zscore() (float64, error) {
	if !s.Ready() {
		return 0, ErrSeriesNotReady
	}
	return (s.Last() - s.Mean()) / s.Std(), nil
}
